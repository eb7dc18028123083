package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"shipper-dispatch/internal/domain"
)

type stubDispatch struct {
	assignFn   func(ctx context.Context, orderID int64) (domain.AssignResult, error)
	reassignFn func(ctx context.Context, orderID int64) (domain.ReassignResult, error)
	manualFn   func(ctx context.Context, orderID, shipperID int64, notes string) (domain.AssignResult, error)
	confirmFn  func(ctx context.Context, orderID, shipperID int64) (domain.ConfirmResult, error)
}

func (s *stubDispatch) AssignOrder(ctx context.Context, orderID int64) (domain.AssignResult, error) {
	if s.assignFn == nil {
		panic("AssignOrder not expected in this test")
	}
	return s.assignFn(ctx, orderID)
}

func (s *stubDispatch) ReassignOrder(ctx context.Context, orderID int64) (domain.ReassignResult, error) {
	if s.reassignFn == nil {
		panic("ReassignOrder not expected in this test")
	}
	return s.reassignFn(ctx, orderID)
}

func (s *stubDispatch) ManualReassign(ctx context.Context, orderID, shipperID int64, notes string) (domain.AssignResult, error) {
	if s.manualFn == nil {
		panic("ManualReassign not expected in this test")
	}
	return s.manualFn(ctx, orderID, shipperID, notes)
}

func (s *stubDispatch) ConfirmPickup(ctx context.Context, orderID, shipperID int64) (domain.ConfirmResult, error) {
	if s.confirmFn == nil {
		panic("ConfirmPickup not expected in this test")
	}
	return s.confirmFn(ctx, orderID, shipperID)
}

type stubQuery struct {
	fn func(ctx context.Context, orderID int64) (*domain.Order, []domain.AssignmentHistory, error)
}

func (s *stubQuery) Assignments(ctx context.Context, orderID int64) (*domain.Order, []domain.AssignmentHistory, error) {
	return s.fn(ctx, orderID)
}

type stubShippers struct {
	getFn       func(ctx context.Context, id int64) (*domain.ShipperProfile, error)
	listFn      func(ctx context.Context) ([]domain.ShipperProfile, error)
	eligibleFn  func(ctx context.Context) ([]domain.ShipperProfile, error)
	registerFn  func(ctx context.Context, p *domain.ShipperProfile) error
	setWorkFn   func(ctx context.Context, id int64, working bool) error
	recomputeFn func(ctx context.Context, id int64) (int, error)
}

func (s *stubShippers) Get(ctx context.Context, id int64) (*domain.ShipperProfile, error) {
	return s.getFn(ctx, id)
}

func (s *stubShippers) List(ctx context.Context) ([]domain.ShipperProfile, error) {
	return s.listFn(ctx)
}

func (s *stubShippers) ListEligible(ctx context.Context) ([]domain.ShipperProfile, error) {
	return s.eligibleFn(ctx)
}

func (s *stubShippers) Register(ctx context.Context, p *domain.ShipperProfile) error {
	return s.registerFn(ctx, p)
}

func (s *stubShippers) SetWorking(ctx context.Context, id int64, working bool) error {
	return s.setWorkFn(ctx, id, working)
}

func (s *stubShippers) RecomputeLoad(ctx context.Context, id int64) (int, error) {
	return s.recomputeFn(ctx, id)
}

type stubSweeps struct {
	pre    domain.SweepReport
	urgent domain.UrgencyReport
	err    error
}

func (s *stubSweeps) SweepToday(context.Context) (domain.SweepReport, error) { return s.pre, s.err }

func (s *stubSweeps) SweepUrgent(context.Context) (domain.UrgencyReport, error) {
	return s.urgent, s.err
}

// serve routes a single request through chi so URL params resolve.
func serve(method, pattern string, h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}
