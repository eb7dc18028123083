package handlers

import (
	"net/http"

	"shipper-dispatch/internal/logx"
)

// SweepHandler triggers periodic sweeps on demand.
type SweepHandler struct {
	preOrders preOrderSweeper
	urgency   urgencySweeper
	logger    logx.Logger
}

// NewSweepHandler creates a new SweepHandler.
func NewSweepHandler(logger logx.Logger, p preOrderSweeper, u urgencySweeper) *SweepHandler {
	logger = logx.OrNop(logger)
	return &SweepHandler{preOrders: p, urgency: u, logger: logger}
}

// PreOrders handles POST /sweeps/pre-orders.
func (h *SweepHandler) PreOrders(w http.ResponseWriter, r *http.Request) {
	rep, err := h.preOrders.SweepToday(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, "not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, sweepResponse{
		Scanned:  rep.Scanned,
		Assigned: rep.Assigned,
		Skipped:  rep.Skipped,
		Failed:   rep.Failed,
	})
}

// Urgent handles POST /sweeps/urgent.
func (h *SweepHandler) Urgent(w http.ResponseWriter, r *http.Request) {
	rep, err := h.urgency.SweepUrgent(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, "not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, urgencyResponse{Scanned: rep.Scanned, Escalated: rep.Escalated})
}
