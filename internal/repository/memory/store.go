// Package memory is an in-process implementation of every dispatch storage port.
// Transactions are serialized and applied copy-on-write, so a failed callback leaves no trace.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/ports/dispatchtx"
)

// EventStatus is the delivery state of an outbox row.
type EventStatus string

// List of outbox states.
const (
	EventPending   EventStatus = "pending"
	EventPublished EventStatus = "published"
	EventFailed    EventStatus = "failed"
)

type jobRow struct {
	job         domain.TimeoutJob
	lockedUntil time.Time
	lastErr     string
}

type eventRow struct {
	event       domain.Event
	status      EventStatus
	lockedUntil time.Time
	lastErr     string
}

type state struct {
	orders   map[int64]domain.Order
	shippers map[int64]domain.ShipperProfile
	history  []domain.AssignmentHistory
	jobs     map[uuid.UUID]jobRow
	events   []eventRow
	nextHist int64
}

func (s *state) clone() *state {
	c := &state{
		orders:   make(map[int64]domain.Order, len(s.orders)),
		shippers: make(map[int64]domain.ShipperProfile, len(s.shippers)),
		history:  append([]domain.AssignmentHistory(nil), s.history...),
		jobs:     make(map[uuid.UUID]jobRow, len(s.jobs)),
		events:   append([]eventRow(nil), s.events...),
		nextHist: s.nextHist,
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.shippers {
		c.shippers[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	return c
}

// Store keeps orders, shippers, history, jobs and events in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: &state{
		orders:   map[int64]domain.Order{},
		shippers: map[int64]domain.ShipperProfile{},
		jobs:     map[uuid.UUID]jobRow{},
	}}
}

// WithTx runs fn against a private copy of the state and publishes it only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.st.clone()
	if err := fn(&txRepo{st: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.st = draft
	return nil
}

// PutOrder inserts or replaces an order.
func (s *Store) PutOrder(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	s.st.orders[o.ID] = o
}

// PutShipper inserts or replaces a shipper profile.
func (s *Store) PutShipper(p domain.ShipperProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.shippers[p.UserID] = p
}

// SetOrderStatus changes the order-management status, as the upstream lifecycle would.
func (s *Store) SetOrderStatus(id int64, status domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.st.orders[id]; ok {
		o.Status = status
		s.st.orders[id] = o
	}
}

// GetOrder returns a copy of the order or nil.
func (s *Store) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// ListHistory returns the assignment ledger of an order, oldest first.
func (s *Store) ListHistory(_ context.Context, orderID int64) ([]domain.AssignmentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AssignmentHistory, 0, 4)
	for _, h := range s.st.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// Jobs returns every job of an order.
func (s *Store) Jobs(orderID int64) []domain.TimeoutJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TimeoutJob, 0, 2)
	for _, r := range s.st.jobs {
		if r.job.OrderID == orderID {
			out = append(out, r.job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

// Events returns every outbox event in append order.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0, len(s.st.events))
	for _, r := range s.st.events {
		out = append(out, r.event)
	}
	return out
}

// EventStatus returns the delivery state of an event.
func (s *Store) EventStatus(id uuid.UUID) (EventStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.st.events {
		if r.event.ID == id {
			return r.status, true
		}
	}
	return "", false
}

func shipperNotFound(id int64) error {
	return fmt.Errorf("shipper %d: %w", id, apperr.ErrNotFound)
}
