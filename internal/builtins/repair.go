// ABOUTME: Repair pack: equipment lookup, availability, and repair-order tools.
// ABOUTME: Handlers catch backend failures and report them as success:false outcomes.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/repairdesk-gateway/internal/auth"
	"github.com/2389/repairdesk-gateway/internal/backend"
	"github.com/2389/repairdesk-gateway/internal/dedupe"
	"github.com/2389/repairdesk-gateway/internal/packs"
)

// RepairPackID identifies the repair pack in the registry.
const RepairPackID = "builtin:repair"

// DefaultStatusRetries is how many times a failed IN_REPAIR transition is retried.
const DefaultStatusRetries = 1

// Options configures the repair pack.
type Options struct {
	// Duplicates suppresses repeated create_repair_order submissions.
	// Nil disables the guard.
	Duplicates *dedupe.Cache

	// StatusRetries overrides DefaultStatusRetries. Negative means no retry.
	StatusRetries int

	Logger *slog.Logger
}

// RepairPack creates the repair pack.
func RepairPack(opts Options) *packs.BuiltinPack {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retries := opts.StatusRetries
	switch {
	case retries == 0:
		retries = DefaultStatusRetries
	case retries < 0:
		retries = 0
	}

	h := &repairHandlers{
		duplicates: opts.Duplicates,
		retries:    retries,
		logger:     logger.With("component", "repair-tools"),
	}
	return &packs.BuiltinPack{
		ID: RepairPackID,
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "search_equipment",
					Description: "Search for equipment by partial or full name, brand, or model in the authenticated user's inventory. Requires valid authentication token. Returns only equipment owned by the current user. Case-insensitive partial matching.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Search term to find equipment by name, brand, or model (e.g., \"Dell\", \"Latitude\", \"laptop\")."}},"required":["query"]}`),
				},
				Handler: h.SearchEquipment,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "validate_availability",
					Description: "Validates if a piece of equipment is available for creating a repair order. Requires authentication. Checks the current status of the equipment (AVAILABLE, IN_REPAIR, or RETIRED). Only available equipment can have new repair orders created.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"equipmentId":{"type":"string","description":"ID of the equipment to validate availability for repair order creation."}},"required":["equipmentId"]}`),
				},
				Handler: h.ValidateAvailability,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "create_repair_order",
					Description: "Creates a new repair order for a specific equipment owned by the authenticated user. Requires USER role authentication. Automatically updates equipment status to \"IN_REPAIR\". Optionally accepts image URLs of the damage. The equipment must be in AVAILABLE status.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"equipmentId":{"type":"string","description":"Unique ID of the equipment that needs repair (UUID format)."},"problemDescription":{"type":"string","description":"Detailed description of the problem, malfunction, or damage reported by the user (e.g., \"Screen not turning on\", \"Coffee spilled on keyboard\")."},"imageUrls":{"type":"array","items":{"type":"string"},"description":"Optional array of image URLs showing the equipment damage or problem. Images should be publicly accessible URLs."}},"required":["equipmentId","problemDescription"]}`),
				},
				Handler: h.CreateRepairOrder,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_repair_orders",
					Description: "Retrieve all repair orders for a specific equipment by its ID. Requires authentication (USER, TECHNICIAN, or ADMIN role). Returns complete order details including problem description, status, dates, services, parts, costs, and assigned technicians. Includes summary statistics.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"equipmentId":{"type":"string","description":"The unique ID of the equipment (UUID format)."}},"required":["equipmentId"]}`),
				},
				Handler: h.GetRepairOrders,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "list_equipment",
					Description: "List all equipment visible to the authenticated user, with current status. Use this when the user does not remember a name to search for.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
				},
				Handler: h.ListEquipment,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "get_repair_order",
					Description: "Retrieve a single repair order by its ID, including status, diagnosis, estimated cost, and dates.",
					InputSchema: json.RawMessage(`{"type":"object","properties":{"repairOrderId":{"type":"string","description":"The unique ID of the repair order (UUID format)."}},"required":["repairOrderId"]}`),
				},
				Handler: h.GetRepairOrder,
			},
		},
	}
}

type repairHandlers struct {
	duplicates *dedupe.Cache
	retries    int
	logger     *slog.Logger
}

// decodeInput unmarshals tool arguments, tagging failures as invalid input.
func decodeInput(input json.RawMessage, v any) error {
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("%w: %v", packs.ErrInvalidInput, err)
	}
	return nil
}

type searchEquipmentInput struct {
	Query string `json:"query"`
}

func (h *repairHandlers) SearchEquipment(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in searchEquipmentInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return &SearchResult{Status: fail("A search term is required"), Equipments: []backend.Equipment{}}, nil
	}

	equipments, err := api.SearchEquipment(ctx, query)
	if err != nil {
		return &SearchResult{Status: failWith("Error searching equipment", err), Equipments: []backend.Equipment{}}, nil
	}

	if len(equipments) == 0 {
		return &SearchResult{
			Status:     fail(fmt.Sprintf("No equipment found with the term %q", query)),
			Equipments: []backend.Equipment{},
		}, nil
	}

	return &SearchResult{
		Status:     succeed(fmt.Sprintf("Found %d equipment(s) matching %q", len(equipments), query)),
		Equipments: equipments,
		Count:      len(equipments),
	}, nil
}

func (h *repairHandlers) ListEquipment(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in struct{}
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}

	equipments, err := api.ListEquipment(ctx)
	if err != nil {
		return &SearchResult{Status: failWith("Error listing equipment", err), Equipments: []backend.Equipment{}}, nil
	}
	if len(equipments) == 0 {
		return &SearchResult{Status: succeed("No equipment registered"), Equipments: []backend.Equipment{}}, nil
	}
	return &SearchResult{
		Status:     succeed(fmt.Sprintf("Found %d equipment(s)", len(equipments))),
		Equipments: equipments,
		Count:      len(equipments),
	}, nil
}

type equipmentIDInput struct {
	EquipmentID string `json:"equipmentId"`
}

// availabilityRule is the availability verdict for one equipment status.
type availabilityRule struct {
	available bool
	message   string
}

var availabilityRules = map[backend.EquipmentStatus]availabilityRule{
	backend.EquipmentAvailable: {true, "Equipment available for repair order creation."},
	backend.EquipmentInRepair:  {false, "The equipment is already under repair. A new order cannot be created."},
	backend.EquipmentRetired:   {false, "The equipment is retired. Repair orders cannot be created."},
}

// checkAvailability applies the status table; unknown statuses are unavailable.
func checkAvailability(status backend.EquipmentStatus) availabilityRule {
	if rule, ok := availabilityRules[status]; ok {
		return rule
	}
	return availabilityRule{false, fmt.Sprintf("Equipment status not recognized: %s", status)}
}

func (h *repairHandlers) ValidateAvailability(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in equipmentIDInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.EquipmentID == "" {
		return &AvailabilityResult{Status: fail("equipmentId is required")}, nil
	}

	equipment, err := api.GetEquipment(ctx, in.EquipmentID)
	if err != nil {
		return &AvailabilityResult{
			Status:      failWith("Error validating equipment availability", err),
			EquipmentID: in.EquipmentID,
		}, nil
	}
	if equipment == nil {
		return &AvailabilityResult{
			Status:      fail(fmt.Sprintf("Equipment with ID %q not found. Please verify the ID.", in.EquipmentID)),
			EquipmentID: in.EquipmentID,
		}, nil
	}

	rule := checkAvailability(equipment.CurrentStatus)
	return &AvailabilityResult{
		Status:    succeed(rule.message),
		Available: rule.available,
		Equipment: &EquipmentSummary{
			ID:     equipment.ID,
			Name:   equipment.Name,
			Status: equipment.CurrentStatus,
			Model:  equipment.Model,
			Brand:  equipment.Brand,
		},
	}, nil
}

type createRepairOrderInput struct {
	EquipmentID        string   `json:"equipmentId"`
	ProblemDescription string   `json:"problemDescription"`
	ImageURLs          []string `json:"imageUrls"`
}

// CreateRepairOrder verifies the equipment, creates the order, then moves the
// equipment to IN_REPAIR. The last step is retried; if it still fails the
// order stands and the result is reported as PARTIAL_SUCCESS.
func (h *repairHandlers) CreateRepairOrder(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in createRepairOrderInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.EquipmentID == "" {
		return &CreateOrderResult{Status: fail("equipmentId is required")}, nil
	}
	problem := strings.TrimSpace(in.ProblemDescription)

	if h.duplicates == nil || problem == "" {
		return h.createRepairOrder(ctx, api, in, problem), nil
	}

	dupKey := dedupe.Key(auth.CredentialFromContext(ctx), in.EquipmentID, problem)
	orderID, seen, err := h.duplicates.Reserve(ctx, dupKey)
	if err != nil {
		return &CreateOrderResult{Status: failWith("Error creating repair order", err)}, nil
	}
	if seen {
		h.logger.Info("duplicate repair order suppressed",
			"equipment_id", in.EquipmentID,
			"repair_order_id", orderID,
		)
		return &CreateOrderResult{
			Status:      succeed("A repair order for this problem was already created moments ago"),
			Outcome:     OutcomeDuplicate,
			Duplicate:   true,
			RepairOrder: &OrderSummary{ID: orderID, EquipmentID: in.EquipmentID},
		}, nil
	}

	// This call holds the reservation; identical calls wait on it until it is
	// resolved or released, even if the steps below panic.
	var created string
	defer func() {
		if created != "" {
			h.duplicates.Remember(dupKey, created)
		} else {
			h.duplicates.Forget(dupKey)
		}
	}()

	res := h.createRepairOrder(ctx, api, in, problem)
	if res.RepairOrder != nil {
		created = res.RepairOrder.ID
	}
	return res, nil
}

// createRepairOrder runs the three downstream steps.
func (h *repairHandlers) createRepairOrder(ctx context.Context, api backend.API, in createRepairOrderInput, problem string) *CreateOrderResult {
	// Step 1: the equipment must exist
	equipment, err := api.GetEquipment(ctx, in.EquipmentID)
	if err != nil {
		return &CreateOrderResult{Status: failWith("Error creating repair order", err)}
	}
	if equipment == nil {
		return &CreateOrderResult{Status: fail(fmt.Sprintf("Equipment with ID %s not found", in.EquipmentID))}
	}
	if problem == "" {
		return &CreateOrderResult{Status: fail("problemDescription is required")}
	}

	// Step 2: create the order
	order, err := api.CreateRepairOrder(ctx, backend.CreateRepairOrderRequest{
		EquipmentID:        in.EquipmentID,
		ProblemDescription: problem,
		ImageURLs:          in.ImageURLs,
	})
	if err != nil {
		h.logger.Warn("repair order creation failed", "equipment_id", in.EquipmentID, "error", err)
		return &CreateOrderResult{Status: failWith("Error creating repair order", err)}
	}

	summary := &OrderSummary{
		ID:                 order.ID,
		EquipmentID:        in.EquipmentID,
		EquipmentName:      equipment.Name,
		ProblemDescription: order.ProblemDescription,
		Status:             order.Status,
		CreatedAt:          order.CreatedAt,
	}
	if ref := order.EquipmentRef(); ref != "" {
		summary.EquipmentID = ref
	}

	// Step 3: equipment goes under repair
	if err := h.markInRepair(ctx, api, in.EquipmentID); err != nil {
		h.logger.Error("repair order created but equipment status not updated",
			"equipment_id", in.EquipmentID,
			"repair_order_id", order.ID,
			"error", err,
		)
		return &CreateOrderResult{
			Status: Status{
				Success: true,
				Message: fmt.Sprintf("Repair order created for %s, but the equipment status could not be updated to %s", equipment.Name, backend.EquipmentInRepair),
				Error:   err.Error(),
			},
			Outcome:        OutcomePartialSuccess,
			PartialSuccess: true,
			RepairOrder:    summary,
		}
	}

	h.logger.Info("repair order created",
		"equipment_id", in.EquipmentID,
		"repair_order_id", order.ID,
	)
	return &CreateOrderResult{
		Status:      succeed(fmt.Sprintf("Repair order successfully created for %s", equipment.Name)),
		Outcome:     OutcomeSuccess,
		RepairOrder: summary,
	}
}

// markInRepair moves equipment to IN_REPAIR, retrying up to h.retries times.
func (h *repairHandlers) markInRepair(ctx context.Context, api backend.API, equipmentID string) error {
	var err error
	for attempt := 0; attempt <= h.retries; attempt++ {
		if _, err = api.UpdateEquipmentStatus(ctx, equipmentID, backend.EquipmentInRepair); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		h.logger.Warn("equipment status update failed",
			"equipment_id", equipmentID,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return err
}

func (h *repairHandlers) GetRepairOrders(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in equipmentIDInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.EquipmentID == "" {
		return &RepairOrdersResult{Status: fail("equipmentId is required"), RepairOrders: []backend.RepairOrder{}}, nil
	}

	orders, err := api.ListRepairOrdersByEquipment(ctx, in.EquipmentID)
	if err != nil {
		return &RepairOrdersResult{
			Status:       failWith("Error getting repair orders", err),
			RepairOrders: []backend.RepairOrder{},
		}, nil
	}

	if len(orders) == 0 {
		return &RepairOrdersResult{
			Status:       succeed(fmt.Sprintf("No repair orders found for equipment %s", in.EquipmentID)),
			RepairOrders: []backend.RepairOrder{},
			Summary:      &OrderCounts{},
		}, nil
	}

	return &RepairOrdersResult{
		Status:       succeed(fmt.Sprintf("Found %d repair order(s)", len(orders))),
		RepairOrders: orders,
		Summary:      summarize(orders),
	}, nil
}

type repairOrderIDInput struct {
	RepairOrderID string `json:"repairOrderId"`
}

func (h *repairHandlers) GetRepairOrder(ctx context.Context, api backend.API, input json.RawMessage) (any, error) {
	var in repairOrderIDInput
	if err := decodeInput(input, &in); err != nil {
		return nil, err
	}
	if in.RepairOrderID == "" {
		return &RepairOrderResult{Status: fail("repairOrderId is required")}, nil
	}

	order, err := api.GetRepairOrder(ctx, in.RepairOrderID)
	if err != nil {
		return &RepairOrderResult{Status: failWith("Error getting repair order", err)}, nil
	}
	if order == nil {
		return &RepairOrderResult{Status: fail(fmt.Sprintf("Repair order with ID %q not found", in.RepairOrderID))}, nil
	}
	return &RepairOrderResult{Status: succeed("Repair order found"), RepairOrder: order}, nil
}
