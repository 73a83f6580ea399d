// ABOUTME: Result payloads returned by the repair tools.
// ABOUTME: Every payload embeds Status so callers always get success/message/error.

package builtins

import (
	"time"

	"github.com/2389/repairdesk-gateway/internal/backend"
)

// Outcome values for create_repair_order.
const (
	OutcomeSuccess        = "SUCCESS"
	OutcomePartialSuccess = "PARTIAL_SUCCESS"
	OutcomeDuplicate      = "DUPLICATE"
)

// Status is the common head of every tool result.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func succeed(msg string) Status { return Status{Success: true, Message: msg} }

func fail(msg string) Status { return Status{Success: false, Message: msg} }

func failWith(msg string, err error) Status {
	return Status{Success: false, Message: msg, Error: err.Error()}
}

// SearchResult is returned by search_equipment and list_equipment.
type SearchResult struct {
	Status
	Equipments []backend.Equipment `json:"equipments"`
	Count      int                 `json:"count"`
}

// EquipmentSummary is the trimmed equipment view in availability results.
type EquipmentSummary struct {
	ID     string                  `json:"id"`
	Name   string                  `json:"name"`
	Status backend.EquipmentStatus `json:"status"`
	Model  string                  `json:"model,omitempty"`
	Brand  string                  `json:"brand,omitempty"`
}

// AvailabilityResult is returned by validate_availability.
type AvailabilityResult struct {
	Status
	Available   bool              `json:"available"`
	EquipmentID string            `json:"equipmentId,omitempty"`
	Equipment   *EquipmentSummary `json:"equipment,omitempty"`
}

// OrderSummary is the created-order view in create_repair_order results.
type OrderSummary struct {
	ID                 string     `json:"id"`
	EquipmentID        string     `json:"equipmentId"`
	EquipmentName      string     `json:"equipmentName,omitempty"`
	ProblemDescription string     `json:"problemDescription,omitempty"`
	Status             string     `json:"status,omitempty"`
	CreatedAt          *time.Time `json:"createdAt,omitempty"`
}

// CreateOrderResult is returned by create_repair_order.
//
// PartialSuccess means the order exists but the equipment could not be moved
// to IN_REPAIR; Error then describes the lost transition.
type CreateOrderResult struct {
	Status
	Outcome        string        `json:"outcome,omitempty"`
	PartialSuccess bool          `json:"partialSuccess,omitempty"`
	Duplicate      bool          `json:"duplicate,omitempty"`
	RepairOrder    *OrderSummary `json:"repairOrder,omitempty"`
}

// OrderCounts summarizes repair orders by exact status match.
type OrderCounts struct {
	Total     int `json:"total"`
	InRepair  int `json:"inRepair"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// RepairOrdersResult is returned by get_repair_orders.
type RepairOrdersResult struct {
	Status
	RepairOrders []backend.RepairOrder `json:"repairOrders"`
	Summary      *OrderCounts          `json:"summary,omitempty"`
}

// RepairOrderResult is returned by get_repair_order.
type RepairOrderResult struct {
	Status
	RepairOrder *backend.RepairOrder `json:"repairOrder,omitempty"`
}

func summarize(orders []backend.RepairOrder) *OrderCounts {
	counts := &OrderCounts{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case backend.OrderInRepair:
			counts.InRepair++
		case backend.OrderCompleted:
			counts.Completed++
		case backend.OrderPending:
			counts.Pending++
		}
	}
	return counts
}
