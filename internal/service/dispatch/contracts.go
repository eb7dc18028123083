package dispatch

import (
	"context"

	"shipper-dispatch/internal/domain"
)

// Metrics receives dispatch outcomes.
type Metrics interface {
	Offer(outcome domain.Outcome)
	Timeout(outcome domain.Outcome)
	Confirmation(outcome domain.Outcome)
}

type nopMetrics struct{}

func (nopMetrics) Offer(domain.Outcome)        {}
func (nopMetrics) Timeout(domain.Outcome)      {}
func (nopMetrics) Confirmation(domain.Outcome) {}

// historyRepository reads committed dispatch state for the admin surface.
type historyRepository interface {
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	ListHistory(ctx context.Context, orderID int64) ([]domain.AssignmentHistory, error)
}
