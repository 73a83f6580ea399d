// ABOUTME: Domain types returned by the downstream repair-shop REST API
// ABOUTME: Equipment, repair orders, and the status values the gateway acts on

package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EquipmentStatus is the lifecycle state of a piece of equipment.
type EquipmentStatus string

// Equipment status values.
const (
	EquipmentAvailable EquipmentStatus = "AVAILABLE"
	EquipmentInRepair  EquipmentStatus = "IN_REPAIR"
	EquipmentRetired   EquipmentStatus = "RETIRED"
)

// Repair order status values. The backend's workflow has more states than
// these; the gateway only counts the ones it summarizes.
const (
	OrderInReview        = "IN_REVIEW"
	OrderWaitingApproval = "WAITING_APPROVAL"
	OrderRejected        = "REJECTED"
	OrderInRepair        = "IN_REPAIR"
	OrderReady           = "READY"
	OrderDelivered       = "DELIVERED"
	OrderCompleted       = "COMPLETED"
	OrderPending         = "PENDING"
)

// Equipment is a customer-owned device registered with the shop.
type Equipment struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type,omitempty"`
	Brand         string          `json:"brand,omitempty"`
	Model         string          `json:"model,omitempty"`
	SerialNumber  string          `json:"serialNumber,omitempty"`
	CurrentStatus EquipmentStatus `json:"currentStatus"`
	CreatedAt     *time.Time      `json:"createdAt,omitempty"`
}

// RepairOrder is a request to repair one piece of equipment.
//
// Nested workflow data the gateway does not interpret (services performed,
// parts, assigned technician) is kept raw so it reaches the caller intact.
type RepairOrder struct {
	ID                 string          `json:"id"`
	EquipmentID        string          `json:"equipmentId,omitempty"`
	Equipment          *Equipment      `json:"equipment,omitempty"`
	ProblemDescription string          `json:"problemDescription"`
	ImageURLs          []string        `json:"imageUrls,omitempty"`
	Diagnosis          string          `json:"diagnosis,omitempty"`
	EstimatedCost      *Amount         `json:"estimatedCost,omitempty"`
	WarrantyStartDate  string          `json:"warrantyStartDate,omitempty"` // YYYY-MM-DD
	WarrantyEndDate    string          `json:"warrantyEndDate,omitempty"`
	Status             string          `json:"status"`
	EvaluatedBy        json.RawMessage `json:"evaluatedBy,omitempty"`
	Details            json.RawMessage `json:"repairOrderDetails,omitempty"`
	Parts              json.RawMessage `json:"repairOrderParts,omitempty"`
	Reviews            json.RawMessage `json:"reviews,omitempty"`
	CreatedAt          *time.Time      `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time      `json:"updatedAt,omitempty"`
}

// Amount is a decimal money value kept as its decimal text. Postgres numeric
// columns arrive as JSON strings ("150.00"); plain numbers are accepted too.
// It marshals as a JSON number.
type Amount string

// UnmarshalJSON accepts a JSON number or a string holding one.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	if _, err := strconv.ParseFloat(text, 64); err != nil {
		return fmt.Errorf("amount %s is not a number", data)
	}
	*a = Amount(text)
	return nil
}

// MarshalJSON writes the amount as a JSON number.
func (a Amount) MarshalJSON() ([]byte, error) {
	if a == "" {
		return []byte("null"), nil
	}
	return []byte(a), nil
}

// Float64 returns the amount as a float, or 0 when it cannot be parsed.
func (a Amount) Float64() float64 {
	f, _ := strconv.ParseFloat(string(a), 64)
	return f
}

// EquipmentRef returns the id of the equipment this order belongs to,
// whether the backend sent it flat or as a nested relation.
func (o *RepairOrder) EquipmentRef() string {
	if o.EquipmentID != "" {
		return o.EquipmentID
	}
	if o.Equipment != nil {
		return o.Equipment.ID
	}
	return ""
}

// CreateRepairOrderRequest is the body of POST /repair-orders.
type CreateRepairOrderRequest struct {
	EquipmentID        string   `json:"equipmentId"`
	ProblemDescription string   `json:"problemDescription"`
	ImageURLs          []string `json:"imageUrls"`
}

type updateEquipmentRequest struct {
	CurrentStatus EquipmentStatus `json:"currentStatus"`
}
