package sweeper

import (
	"context"
	"time"

	"shipper-dispatch/internal/domain"
)

// candidateSource lists order lines dated on a calendar day.
type candidateSource interface {
	ListPreOrderCandidates(ctx context.Context, day time.Time) ([]domain.DueOrder, error)
	ListUrgentCandidates(ctx context.Context, day time.Time) ([]domain.DueOrder, error)
}

type assigner interface {
	AssignOrder(ctx context.Context, orderID int64) (domain.AssignResult, error)
}

// Notifier publishes best-effort events; it never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, e domain.Event)
}

// Metrics receives sweep timings.
type Metrics interface {
	SweepDuration(sweep string, d time.Duration)
	UrgentOrders(n int)
}

type nopMetrics struct{}

func (nopMetrics) SweepDuration(string, time.Duration) {}
func (nopMetrics) UrgentOrders(int)                    {}

// groupByOrder keeps the first line of each order, preserving order of appearance.
// Sources return lines sorted by order id and window start, so that is the earliest window.
func groupByOrder(rows []domain.DueOrder) []domain.DueOrder {
	out := make([]domain.DueOrder, 0, len(rows))
	seen := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.OrderID]; ok {
			continue
		}
		seen[r.OrderID] = struct{}{}
		out = append(out, r)
	}
	return out
}
