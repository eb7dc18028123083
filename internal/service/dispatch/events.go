package dispatch

import (
	"context"
	"fmt"
	"time"

	"shipper-dispatch/internal/domain"
)

type eventAppender interface {
	AppendEvent(ctx context.Context, e domain.Event) error
}

type assignmentPayload struct {
	OrderCode   string    `json:"order_code"`
	ShipperName string    `json:"shipper_name"`
	AssignedAt  time.Time `json:"assigned_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Manual      bool      `json:"manual,omitempty"`
}

type unassignedPayload struct {
	OrderCode         string `json:"order_code"`
	PreviousShipperID int64  `json:"previous_shipper_id"`
	Reason            string `json:"reason"`
}

type confirmedPayload struct {
	OrderCode    string    `json:"order_code"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
	ActiveOrders int       `json:"active_orders"`
}

func appendEvent(ctx context.Context, w eventAppender, t domain.EventType, sev domain.Severity,
	orderID int64, shipperID *int64, payload any, now time.Time) error {
	e, err := domain.NewEvent(t, sev, orderID, shipperID, payload, now)
	if err != nil {
		return fmt.Errorf("build %s event: %w", t, err)
	}
	if err := w.AppendEvent(ctx, e); err != nil {
		return fmt.Errorf("append %s event: %w", t, err)
	}
	return nil
}
