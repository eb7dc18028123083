package domain

import "strings"

type (
	// OrderStatus is the coarse lifecycle state owned by order management.
	OrderStatus string
	// ShipperStatus is the dispatch sub-state of an order.
	ShipperStatus string
	// AssignmentResponse closes an assignment history row.
	AssignmentResponse string
)

// List of order statuses known to dispatch.
const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipping  OrderStatus = "shipping"
	OrderDelivered OrderStatus = "delivered"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// List of dispatch sub-states. The zero value means unassigned.
const (
	ShipperNone     ShipperStatus = ""
	ShipperOffered  ShipperStatus = "offered"
	ShipperAccepted ShipperStatus = "accepted"
)

// List of history responses.
const (
	ResponseAccepted       AssignmentResponse = "accepted"
	ResponseTimeout        AssignmentResponse = "timeout"
	ResponseManualReassign AssignmentResponse = "manual_reassign"
)

var allowedOrderStatuses = [...]OrderStatus{
	OrderPending, OrderConfirmed, OrderShipping, OrderDelivered, OrderCompleted, OrderCancelled,
}

// ParseOrderStatus normalizes s and reports whether it names a known status.
// The American spelling "canceled" is accepted as an alias.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "canceled" {
		return OrderCancelled, true
	}
	for _, v := range allowedOrderStatuses {
		if OrderStatus(s) == v {
			return v, true
		}
	}
	return "", false
}

// Terminal reports whether the order left active delivery.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCompleted, OrderCancelled:
		return true
	default:
		return false
	}
}

// Valid checks if the AssignmentResponse is valid
func (r AssignmentResponse) Valid() bool {
	switch r {
	case ResponseAccepted, ResponseTimeout, ResponseManualReassign:
		return true
	default:
		return false
	}
}
