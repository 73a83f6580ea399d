// Package builtins provides the gateway's built-in tool pack.
//
// # Repair Pack (builtin:repair)
//
//   - search_equipment: Search the caller's equipment by name, brand, or model
//   - validate_availability: Check whether equipment can take a new repair order
//   - create_repair_order: Open an order and move the equipment to IN_REPAIR
//   - get_repair_orders: List orders for one equipment with a status summary
//   - list_equipment: List all equipment visible to the caller
//   - get_repair_order: Fetch one order by id
//
// # Outcomes
//
// Every tool returns a struct embedding Status, so callers always see
// success, message and, on failure, error. Backend failures never escape as
// Go errors; they become success:false results. A handler returns an error
// only when its arguments cannot be decoded, wrapped with
// packs.ErrInvalidInput.
//
// create_repair_order reports one of three outcomes: SUCCESS, PARTIAL_SUCCESS
// (order created, status transition failed after retries) or DUPLICATE (the
// same caller submitted the same problem within the dedupe window).
package builtins
