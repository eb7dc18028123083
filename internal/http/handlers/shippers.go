package handlers

import (
	"net/http"
	"strconv"

	"shipper-dispatch/internal/logx"
)

// ShipperHandler serves the shipper pool endpoints.
type ShipperHandler struct {
	usecase shipperUsecase
	logger  logx.Logger
}

// NewShipperHandler creates a new ShipperHandler.
func NewShipperHandler(logger logx.Logger, uc shipperUsecase) *ShipperHandler {
	logger = logx.OrNop(logger)
	return &ShipperHandler{usecase: uc, logger: logger}
}

// List handles GET /shippers.
func (h *ShipperHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.usecase.List(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, "not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, shippersToResponse(list))
}

// ListEligible handles GET /shippers/eligible.
func (h *ShipperHandler) ListEligible(w http.ResponseWriter, r *http.Request) {
	list, err := h.usecase.ListEligible(r.Context())
	if err != nil {
		writeServiceError(h.logger, w, r, err, "not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, shippersToResponse(list))
}

// GetByID handles GET /shippers/{id}.
func (h *ShipperHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	p, err := h.usecase.Get(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "shipper not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, shipperToResponse(*p))
}

// Register handles POST /shippers.
func (h *ShipperHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerShipperRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}
	p := req.toModel()
	if err := h.usecase.Register(r.Context(), p); err != nil {
		writeServiceError(h.logger, w, r, err, "not found")
		return
	}
	w.Header().Set("Location", "/shippers/"+strconv.FormatInt(p.UserID, 10))
	writeJSON(h.logger, w, r, http.StatusCreated, shipperToResponse(*p))
}

// SetWorking handles PUT /shippers/{id}/working.
func (h *ShipperHandler) SetWorking(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	var req setWorkingRequest
	if ok := decodeJSON(h.logger, w, r, &req, false); !ok {
		return
	}
	if req.IsWorking == nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "is_working is required")
		return
	}
	if err := h.usecase.SetWorking(r.Context(), id, *req.IsWorking); err != nil {
		writeServiceError(h.logger, w, r, err, "shipper not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]any{"user_id": id, "is_working": *req.IsWorking})
}

// RecomputeLoad handles POST /shippers/{id}/recompute-load.
func (h *ShipperHandler) RecomputeLoad(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}
	n, err := h.usecase.RecomputeLoad(r.Context(), id)
	if err != nil {
		writeServiceError(h.logger, w, r, err, "shipper not found")
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]any{"user_id": id, "current_active_orders": n})
}
