package memory

import (
	"context"
	"fmt"
	"sort"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
)

// List returns every shipper ordered by id.
func (s *Store) List(_ context.Context) ([]domain.ShipperProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ShipperProfile, 0, len(s.st.shippers))
	for _, p := range s.st.shippers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Get returns a shipper or nil.
func (s *Store) Get(_ context.Context, id int64) (*domain.ShipperProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.shippers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ListEligible returns working shippers below capacity.
func (s *Store) ListEligible(_ context.Context) ([]domain.ShipperProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return eligible(s.st), nil
}

// SetWorking toggles availability and reports whether the shipper exists.
func (s *Store) SetWorking(_ context.Context, id int64, working bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.shippers[id]
	if !ok {
		return false, nil
	}
	p.IsWorking = working
	s.st.shippers[id] = p
	return true, nil
}

// RecomputeLoad overwrites the active-order counter from order state.
func (s *Store) RecomputeLoad(_ context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recompute(s.st, id)
}

// Create registers a new shipper; an existing user id is a conflict.
func (s *Store) Create(_ context.Context, p *domain.ShipperProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.shippers[p.UserID]; ok {
		return fmt.Errorf("shipper %d: %w", p.UserID, apperr.ErrConflict)
	}
	s.st.shippers[p.UserID] = *p
	return nil
}
