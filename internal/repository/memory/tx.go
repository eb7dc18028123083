package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/ports/dispatchtx"
)

type txRepo struct {
	st *state
}

var _ dispatchtx.Repository = (*txRepo)(nil)

func (r *txRepo) GetOrderForUpdate(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return nil, nil
	}
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &o, nil
}

func (r *txRepo) ListEligibleShippersForUpdate(_ context.Context) ([]domain.ShipperProfile, error) {
	return eligible(r.st), nil
}

func (r *txRepo) GetShipperForUpdate(_ context.Context, id int64) (*domain.ShipperProfile, error) {
	p, ok := r.st.shippers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *txRepo) SetOffer(_ context.Context, in dispatchtx.Offer) (bool, error) {
	o, ok := r.st.orders[in.OrderID]
	if !ok || o.Version != in.Version || o.ShipperID != nil {
		return false, nil
	}
	shipperID, at, jobID := in.ShipperID, in.AssignedAt, in.JobID
	o.ShipperID = &shipperID
	o.ShipperStatus = domain.ShipperOffered
	o.AssignedAt = &at
	o.ShipperConfirmedAt = nil
	o.ReassignmentJobID = &jobID
	o.Version++
	r.st.orders[o.ID] = o
	return true, nil
}

func (r *txRepo) ClearAssignment(_ context.Context, orderID, version int64) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.Version != version || o.ShipperID == nil {
		return false, nil
	}
	o.ShipperID = nil
	o.ShipperStatus = domain.ShipperNone
	o.AssignedAt = nil
	o.ShipperConfirmedAt = nil
	o.ReassignmentJobID = nil
	o.Version++
	r.st.orders[orderID] = o
	return true, nil
}

func (r *txRepo) AcceptOffer(_ context.Context, orderID, shipperID, version int64, at time.Time) (bool, error) {
	o, ok := r.st.orders[orderID]
	if !ok || o.Version != version || o.ShipperStatus != domain.ShipperOffered ||
		o.ShipperID == nil || *o.ShipperID != shipperID {
		return false, nil
	}
	o.ShipperStatus = domain.ShipperAccepted
	o.ShipperConfirmedAt = &at
	o.ReassignmentJobID = nil
	o.Version++
	r.st.orders[orderID] = o
	return true, nil
}

func (r *txRepo) TouchShipper(_ context.Context, id int64, at time.Time) error {
	p, ok := r.st.shippers[id]
	if !ok {
		return shipperNotFound(id)
	}
	p.LastAssignedAt = &at
	r.st.shippers[id] = p
	return nil
}

func (r *txRepo) IncrementActiveOrders(_ context.Context, id int64) (bool, error) {
	p, ok := r.st.shippers[id]
	if !ok {
		return false, shipperNotFound(id)
	}
	if p.CurrentActiveOrders >= p.MaxActiveOrders {
		return false, nil
	}
	p.CurrentActiveOrders++
	r.st.shippers[id] = p
	return true, nil
}

func (r *txRepo) RecomputeLoad(_ context.Context, id int64) (int, error) {
	return recompute(r.st, id)
}

func (r *txRepo) InsertHistory(_ context.Context, h *domain.AssignmentHistory) error {
	r.st.nextHist++
	h.ID = r.st.nextHist
	r.st.history = append(r.st.history, *h)
	return nil
}

func (r *txRepo) CloseOpenHistory(_ context.Context, orderID, shipperID int64, resp domain.AssignmentResponse, at time.Time, notes string) (bool, error) {
	for i := len(r.st.history) - 1; i >= 0; i-- {
		h := r.st.history[i]
		if h.OrderID != orderID || h.ShipperID != shipperID || !h.Open() {
			continue
		}
		h.Response = &resp
		h.RespondedAt = &at
		if notes != "" {
			h.Notes = notes
		}
		r.st.history[i] = h
		return true, nil
	}
	return false, nil
}

func (r *txRepo) InsertJob(_ context.Context, j domain.TimeoutJob) error {
	r.st.jobs[j.ID] = jobRow{job: j}
	return nil
}

func (r *txRepo) CancelJob(_ context.Context, id uuid.UUID) (bool, error) {
	row, ok := r.st.jobs[id]
	if !ok || row.job.Status != domain.JobScheduled {
		return false, nil
	}
	row.job.Status = domain.JobCancelled
	r.st.jobs[id] = row
	return true, nil
}

func (r *txRepo) AppendEvent(_ context.Context, e domain.Event) error {
	r.st.events = append(r.st.events, eventRow{event: e, status: EventPending})
	return nil
}

func eligible(st *state) []domain.ShipperProfile {
	out := make([]domain.ShipperProfile, 0, len(st.shippers))
	for _, p := range st.shippers {
		if p.Eligible() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func recompute(st *state, id int64) (int, error) {
	p, ok := st.shippers[id]
	if !ok {
		return 0, shipperNotFound(id)
	}
	n := 0
	for _, o := range st.orders {
		if o.ShipperID != nil && *o.ShipperID == id &&
			o.ShipperStatus == domain.ShipperAccepted && !o.Status.Terminal() {
			n++
		}
	}
	p.CurrentActiveOrders = n
	st.shippers[id] = p
	return n, nil
}
