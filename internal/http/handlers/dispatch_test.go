package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
)

func TestDispatchHandler_Dispatch_Offered(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	job := uuid.MustParse("6f1c6a3e-8d0b-4a39-9a57-2f5b0f0b1c2d")
	uc := &stubDispatch{
		assignFn: func(_ context.Context, orderID int64) (domain.AssignResult, error) {
			require.Equal(t, int64(7), orderID)
			return domain.AssignResult{
				Assigned:    true,
				Outcome:     domain.OutcomeOffered,
				OrderID:     orderID,
				ShipperID:   42,
				ShipperName: "Ann",
				AssignedAt:  at,
				JobID:       job,
				ExpiresAt:   at.Add(3 * time.Minute),
			}, nil
		},
	}
	h := NewDispatchHandler(nil, uc, nil)

	rr := serve(http.MethodPost, "/orders/{id}/dispatch", h.Dispatch, "/orders/7/dispatch", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"assigned": true,
		"outcome": "offered",
		"order_id": 7,
		"shipper_id": 42,
		"shipper_name": "Ann",
		"assigned_at": "2025-01-02T03:04:05Z",
		"expires_at": "2025-01-02T03:07:05Z",
		"job_id": "6f1c6a3e-8d0b-4a39-9a57-2f5b0f0b1c2d"
	}`, rr.Body.String())
}

func TestDispatchHandler_Dispatch_NoEligibleIsNotAnError(t *testing.T) {
	t.Parallel()

	uc := &stubDispatch{
		assignFn: func(_ context.Context, orderID int64) (domain.AssignResult, error) {
			return domain.AssignResult{OrderID: orderID, Outcome: domain.OutcomeNoEligible}, nil
		},
	}
	h := NewDispatchHandler(nil, uc, nil)

	rr := serve(http.MethodPost, "/orders/{id}/dispatch", h.Dispatch, "/orders/3/dispatch", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"assigned":false,"outcome":"no_eligible_shipper","order_id":3}`, rr.Body.String())
}

func TestDispatchHandler_Dispatch_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		err    error
		code   int
	}{
		{name: "bad id", target: "/orders/abc/dispatch", code: http.StatusBadRequest},
		{name: "zero id", target: "/orders/0/dispatch", code: http.StatusBadRequest},
		{name: "not found", target: "/orders/1/dispatch", err: fmt.Errorf("order 1: %w", apperr.ErrNotFound), code: http.StatusNotFound},
		{name: "conflict", target: "/orders/1/dispatch", err: apperr.ErrConflict, code: http.StatusConflict},
		{name: "internal", target: "/orders/1/dispatch", err: errors.New("db down"), code: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			uc := &stubDispatch{
				assignFn: func(context.Context, int64) (domain.AssignResult, error) {
					return domain.AssignResult{}, tt.err
				},
			}
			h := NewDispatchHandler(nil, uc, nil)
			rr := serve(http.MethodPost, "/orders/{id}/dispatch", h.Dispatch, tt.target, "")
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestDispatchHandler_Reassign_EmptyBodyRunsRoundRobin(t *testing.T) {
	t.Parallel()

	uc := &stubDispatch{
		reassignFn: func(_ context.Context, orderID int64) (domain.ReassignResult, error) {
			return domain.ReassignResult{
				Reassigned:        true,
				Outcome:           domain.OutcomeReassigned,
				OrderID:           orderID,
				PreviousShipperID: 1,
				Next:              domain.AssignResult{Assigned: true, Outcome: domain.OutcomeOffered, OrderID: orderID, ShipperID: 2},
			}, nil
		},
	}
	h := NewDispatchHandler(nil, uc, nil)

	rr := serve(http.MethodPost, "/orders/{id}/reassign", h.Reassign, "/orders/9/reassign", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"reassigned": true,
		"outcome": "reassigned",
		"order_id": 9,
		"previous_shipper_id": 1,
		"next": {"assigned": true, "outcome": "offered", "order_id": 9, "shipper_id": 2}
	}`, rr.Body.String())
}

func TestDispatchHandler_Reassign_WithShipperIsManual(t *testing.T) {
	t.Parallel()

	uc := &stubDispatch{
		manualFn: func(_ context.Context, orderID, shipperID int64, notes string) (domain.AssignResult, error) {
			require.Equal(t, int64(9), orderID)
			require.Equal(t, int64(5), shipperID)
			require.Equal(t, "vip", notes)
			return domain.AssignResult{Assigned: true, Outcome: domain.OutcomeOffered, OrderID: orderID, ShipperID: shipperID}, nil
		},
	}
	h := NewDispatchHandler(nil, uc, nil)

	rr := serve(http.MethodPost, "/orders/{id}/reassign", h.Reassign, "/orders/9/reassign", `{"shipper_id":5,"notes":"vip"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"assigned":true,"outcome":"offered","order_id":9,"shipper_id":5}`, rr.Body.String())
}

func TestDispatchHandler_Reassign_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	h := NewDispatchHandler(nil, &stubDispatch{}, nil)
	rr := serve(http.MethodPost, "/orders/{id}/reassign", h.Reassign, "/orders/9/reassign", `{"courier":1}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid json"}`, rr.Body.String())
}

func TestDispatchHandler_ConfirmPickup(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	uc := &stubDispatch{
		confirmFn: func(_ context.Context, orderID, shipperID int64) (domain.ConfirmResult, error) {
			if shipperID != 4 {
				return domain.ConfirmResult{OrderID: orderID, ShipperID: shipperID, Outcome: domain.OutcomeWrongShipper}, nil
			}
			return domain.ConfirmResult{
				Confirmed: true, Outcome: domain.OutcomeAccepted, OrderID: orderID,
				ShipperID: shipperID, ConfirmedAt: at, ActiveOrders: 2,
			}, nil
		},
	}
	h := NewDispatchHandler(nil, uc, nil)

	rr := serve(http.MethodPost, "/orders/{id}/confirm-pickup", h.ConfirmPickup, "/orders/11/confirm-pickup", `{"shipper_id":4}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"confirmed": true,
		"outcome": "accepted",
		"order_id": 11,
		"shipper_id": 4,
		"confirmed_at": "2025-03-01T10:00:00Z",
		"active_orders": 2
	}`, rr.Body.String())

	rr = serve(http.MethodPost, "/orders/{id}/confirm-pickup", h.ConfirmPickup, "/orders/11/confirm-pickup", `{"shipper_id":8}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"confirmed":false,"outcome":"wrong_shipper","order_id":11,"shipper_id":8,"active_orders":0}`, rr.Body.String())
}

func TestDispatchHandler_ConfirmPickup_TrailingData(t *testing.T) {
	t.Parallel()

	h := NewDispatchHandler(nil, &stubDispatch{}, nil)
	rr := serve(http.MethodPost, "/orders/{id}/confirm-pickup", h.ConfirmPickup, "/orders/1/confirm-pickup", `{"shipper_id":4}{}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"invalid json: trailing data"}`, rr.Body.String())
}

func TestDispatchHandler_Assignments(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	resp := at.Add(3 * time.Minute)
	timeout := domain.ResponseTimeout
	shipper := int64(2)
	job := uuid.MustParse("0b7f3c52-55a6-4e0c-9d8e-0d4b64f0a001")
	q := &stubQuery{fn: func(_ context.Context, orderID int64) (*domain.Order, []domain.AssignmentHistory, error) {
		o := &domain.Order{
			ID: orderID, Status: domain.OrderConfirmed, ShipperID: &shipper,
			ShipperStatus: domain.ShipperOffered, AssignedAt: &resp, ReassignmentJobID: &job,
		}
		return o, []domain.AssignmentHistory{
			{OrderID: orderID, ShipperID: 1, AssignedAt: at, Response: &timeout, RespondedAt: &resp},
			{OrderID: orderID, ShipperID: 2, AssignedAt: resp},
		}, nil
	}}
	h := NewDispatchHandler(nil, &stubDispatch{}, q)

	rr := serve(http.MethodGet, "/orders/{id}/assignments", h.Assignments, "/orders/5/assignments", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"order_id": 5,
		"status": "confirmed",
		"shipper_id": 2,
		"shipper_status": "offered",
		"assigned_at": "2025-03-01T09:03:00Z",
		"reassignment_job_id": "0b7f3c52-55a6-4e0c-9d8e-0d4b64f0a001",
		"history": [
			{"shipper_id": 1, "assigned_at": "2025-03-01T09:00:00Z", "response": "timeout", "responded_at": "2025-03-01T09:03:00Z"},
			{"shipper_id": 2, "assigned_at": "2025-03-01T09:03:00Z"}
		]
	}`, rr.Body.String())
}

func TestDispatchHandler_Assignments_NotFound(t *testing.T) {
	t.Parallel()

	q := &stubQuery{fn: func(context.Context, int64) (*domain.Order, []domain.AssignmentHistory, error) {
		return nil, nil, apperr.ErrNotFound
	}}
	h := NewDispatchHandler(nil, &stubDispatch{}, q)

	rr := serve(http.MethodGet, "/orders/{id}/assignments", h.Assignments, "/orders/5/assignments", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"order not found"}`, rr.Body.String())
}
