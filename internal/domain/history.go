package domain

import "time"

// AssignmentHistory is one row of the append-only offer ledger.
type AssignmentHistory struct {
	ID          int64
	OrderID     int64
	ShipperID   int64
	AssignedAt  time.Time
	Response    *AssignmentResponse
	RespondedAt *time.Time
	Notes       string
}

// Open reports whether the offer is still awaiting a response.
func (h AssignmentHistory) Open() bool {
	return h.Response == nil
}
