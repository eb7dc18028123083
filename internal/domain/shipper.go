package domain

import "time"

// ShipperProfile tracks the working status and load of a courier.
type ShipperProfile struct {
	UserID              int64
	Name                string
	Phone               string
	IsWorking           bool
	CurrentActiveOrders int
	MaxActiveOrders     int
	LastAssignedAt      *time.Time
}

// Eligible reports whether the shipper may receive a new offer.
func (s ShipperProfile) Eligible() bool {
	return s.IsWorking && s.CurrentActiveOrders < s.MaxActiveOrders
}
