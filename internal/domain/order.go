package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the subset of an order record that dispatch reads and mutates.
type Order struct {
	ID                 int64
	Code               string
	Status             OrderStatus
	ShipperID          *int64
	ShipperStatus      ShipperStatus
	AssignedAt         *time.Time
	ShipperConfirmedAt *time.Time
	ReassignmentJobID  *uuid.UUID
	// Version is bumped by every dispatch write and used as the CAS token.
	Version int64
	Lines   []OrderLine
}

// OrderLine is one delivery line of an order. Each line may be scheduled on a different day.
type OrderLine struct {
	ID           int64
	OrderID      int64
	DeliveryDate time.Time
	Window       TimeWindow
}

// TimeWindow is a delivery window expressed as offsets from local midnight.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

// On returns the absolute window start on the given calendar date.
func (w TimeWindow) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, date.Location()).Add(w.Start)
}

// String formats the window as "HH:MM-HH:MM".
func (w TimeWindow) String() string {
	return clock(w.Start) + "-" + clock(w.End)
}

func clock(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	return string([]byte{byte('0' + h/10), byte('0' + h%10), ':', byte('0' + m/10), byte('0' + m%10)})
}

// LocalDate places a DATE value, which carries no zone, on loc's calendar.
// The stored year, month and day are kept; the instant is not converted.
func LocalDate(d time.Time, loc *time.Location) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// StartOfDay truncates t to local midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// IsPreOrder reports whether every line of the order is dated after today.
// An order without lines is not a pre-order.
func (o *Order) IsPreOrder(today time.Time, loc *time.Location) bool {
	if len(o.Lines) == 0 {
		return false
	}
	start := StartOfDay(today, loc)
	for _, l := range o.Lines {
		if !LocalDate(l.DeliveryDate, loc).After(start) {
			return false
		}
	}
	return true
}

// Dispatchable reports whether dispatch may create a new round-robin offer for the order.
func (o *Order) Dispatchable() bool {
	return o.Status == OrderConfirmed && o.ShipperID == nil
}
