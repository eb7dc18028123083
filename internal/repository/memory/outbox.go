package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
)

// AppendEvent adds an event outside of any dispatch transaction.
func (s *Store) AppendEvent(_ context.Context, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.events = append(s.st.events, eventRow{event: e, status: EventPending})
	return nil
}

// ClaimEvents leases up to limit pending events in append order.
func (s *Store) ClaimEvents(_ context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0, limit)
	for i := range s.st.events {
		if len(out) == limit {
			break
		}
		r := &s.st.events[i]
		if r.status != EventPending || r.lockedUntil.After(now) {
			continue
		}
		r.lockedUntil = now.Add(lease)
		out = append(out, r.event)
	}
	return out, nil
}

// MarkPublished marks an event delivered.
func (s *Store) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	return s.settleEvent(id, func(r *eventRow) { r.status = EventPublished })
}

// MarkFailed records a delivery failure; final moves the event out of the queue.
func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, attempts int, final bool, lastErr string) error {
	return s.settleEvent(id, func(r *eventRow) {
		r.event.Attempts = attempts
		r.lastErr = lastErr
		if final {
			r.status = EventFailed
		}
	})
}

func (s *Store) settleEvent(id uuid.UUID, fn func(*eventRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.events {
		if s.st.events[i].event.ID == id {
			fn(&s.st.events[i])
			s.st.events[i].lockedUntil = time.Time{}
			return nil
		}
	}
	return fmt.Errorf("event %s: %w", id, apperr.ErrNotFound)
}

func jobNotFound(id uuid.UUID) error {
	return fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
}
