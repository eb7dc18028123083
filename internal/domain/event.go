package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a dispatch notification.
type EventType string

// List of dispatch event types.
const (
	EventAssignmentChanged  EventType = "assignment_changed"
	EventUnassigned         EventType = "unassigned"
	EventPickupConfirmed    EventType = "pickup_confirmed"
	EventUrgencyEscalation  EventType = "urgency_escalation"
	EventPreOrderAssigned   EventType = "preorder_assigned"
	EventPreOrderUnassigned EventType = "preorder_unassigned"
)

// Severity of an event for the notification fan-out.
type Severity string

// List of severities.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is a notification appended to the outbox.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Severity  Severity
	OrderID   int64
	ShipperID *int64
	Payload   json.RawMessage
	CreatedAt time.Time
	Attempts  int
}

// NewEvent builds an event with a fresh id; payload is marshalled to JSON.
func NewEvent(t EventType, sev Severity, orderID int64, shipperID *int64, payload any, now time.Time) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		raw = b
	}
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Severity:  sev,
		OrderID:   orderID,
		ShipperID: shipperID,
		Payload:   raw,
		CreatedAt: now,
	}, nil
}
