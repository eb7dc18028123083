package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome explains the result of a dispatch operation.
type Outcome string

// List of dispatch outcomes.
const (
	OutcomeOffered         Outcome = "offered"
	OutcomeAccepted        Outcome = "accepted"
	OutcomeReassigned      Outcome = "reassigned"
	OutcomeNoEligible      Outcome = "no_eligible_shipper"
	OutcomeAlreadyAssigned Outcome = "already_assigned"
	OutcomeNotDispatchable Outcome = "not_dispatchable"
	OutcomePreOrder        Outcome = "pre_order_deferred"
	OutcomeStale           Outcome = "stale"
	OutcomeWrongShipper    Outcome = "wrong_shipper"
	OutcomeAtCapacity      Outcome = "at_capacity"
)

// AssignResult is the result of creating an offer.
type AssignResult struct {
	Assigned    bool
	Outcome     Outcome
	OrderID     int64
	ShipperID   int64
	ShipperName string
	AssignedAt  time.Time
	JobID       uuid.UUID
	ExpiresAt   time.Time
}

// ReassignResult is the result of withdrawing an offer and re-running assignment.
type ReassignResult struct {
	Reassigned        bool
	Outcome           Outcome
	OrderID           int64
	PreviousShipperID int64
	Next              AssignResult
}

// ConfirmResult is the result of a pickup confirmation.
type ConfirmResult struct {
	Confirmed    bool
	Outcome      Outcome
	OrderID      int64
	ShipperID    int64
	ConfirmedAt  time.Time
	ActiveOrders int
}

// DueOrder is an order line candidate returned by the sweeper queries.
type DueOrder struct {
	OrderID       int64
	Code          string
	ShipperID     *int64
	ShipperStatus ShipperStatus
	DeliveryDate  time.Time
	Window        TimeWindow
}

// SweepReport summarizes one pre-order sweep.
type SweepReport struct {
	Scanned  int
	Assigned int
	Skipped  int
	Failed   int
}

// UrgencyReport summarizes one urgency sweep.
type UrgencyReport struct {
	Scanned   int
	Escalated int
}
