package handlers

import (
	"errors"
	"net/http"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/logx"
)

// DispatchHandler serves the order dispatch endpoints. Dispatch outcomes such
// as "no eligible shipper" or "stale" are successful responses with an outcome field.
type DispatchHandler struct {
	usecase dispatchUsecase
	query   assignmentQuery
	logger  logx.Logger
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(logger logx.Logger, uc dispatchUsecase, q assignmentQuery) *DispatchHandler {
	logger = logx.OrNop(logger)
	return &DispatchHandler{usecase: uc, query: q, logger: logger}
}

// writeServiceError maps apperr sentinels to HTTP statuses.
func writeServiceError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, apperr.ErrInvalid):
		writeError(logger, w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, apperr.ErrNotFound):
		writeError(logger, w, r, http.StatusNotFound, notFound)
	case errors.Is(err, apperr.ErrConflict):
		writeError(logger, w, r, http.StatusConflict, "conflict")
	default:
		logger.Error("request failed",
			logx.String("req_id", reqID(r.Context())),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

// Dispatch handles POST /orders/{id}/dispatch.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	res, err := h.usecase.AssignOrder(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignResultToResponse(res))
}

// Reassign handles POST /orders/{id}/reassign. With shipper_id in the body the
// order is handed to that shipper; otherwise the pending offer is withdrawn and
// round robin runs again.
func (h *DispatchHandler) Reassign(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req reassignRequest
	if ok := decodeJSON(h.logger, w, r, &req, true); !ok {
		return
	}

	if req.ShipperID != nil {
		res, err := h.usecase.ManualReassign(r.Context(), id, *req.ShipperID, req.Notes)
		if err != nil {
			writeServiceError(h.logger, w, r, err, "order or shipper not found")
			return
		}
		writeJSON(h.logger, w, r, http.StatusOK, assignResultToResponse(res))
		return
	}

	res, err := h.usecase.ReassignOrder(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, reassignResultToResponse(res))
}

// ConfirmPickup handles POST /orders/{id}/confirm-pickup.
func (h *DispatchHandler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req confirmPickupRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}
	res, err := h.usecase.ConfirmPickup(r.Context(), id, req.ShipperID)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, confirmResultToResponse(res))
}

// Assignments handles GET /orders/{id}/assignments.
func (h *DispatchHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	o, hist, err := h.query.Assignments(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "order not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentsToResponse(o, hist))
}
