package memory

import (
	"context"
	"sort"
	"time"

	"shipper-dispatch/internal/domain"
)

// ListPreOrderCandidates returns lines dated day of confirmed orders without a shipper.
func (s *Store) ListPreOrderCandidates(_ context.Context, day time.Time) ([]domain.DueOrder, error) {
	return s.dueLines(day, func(o domain.Order) bool {
		return o.Status == domain.OrderConfirmed && o.ShipperID == nil
	}), nil
}

// ListUrgentCandidates returns lines dated day of confirmed orders whose shipper has not accepted.
func (s *Store) ListUrgentCandidates(_ context.Context, day time.Time) ([]domain.DueOrder, error) {
	return s.dueLines(day, func(o domain.Order) bool {
		return o.Status == domain.OrderConfirmed && o.ShipperStatus != domain.ShipperAccepted
	}), nil
}

func (s *Store) dueLines(day time.Time, keep func(domain.Order) bool) []domain.DueOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	y, m, d := day.Date()
	out := make([]domain.DueOrder, 0, 8)
	for _, o := range s.st.orders {
		if !keep(o) {
			continue
		}
		for _, l := range o.Lines {
			ly, lm, ld := l.DeliveryDate.Date()
			if ly != y || lm != m || ld != d {
				continue
			}
			out = append(out, domain.DueOrder{
				OrderID:       o.ID,
				Code:          o.Code,
				ShipperID:     o.ShipperID,
				ShipperStatus: o.ShipperStatus,
				DeliveryDate:  l.DeliveryDate,
				Window:        l.Window,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].Window.Start < out[j].Window.Start
	})
	return out
}
