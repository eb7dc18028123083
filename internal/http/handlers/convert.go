package handlers

import (
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func assignResultToResponse(r domain.AssignResult) assignResponse {
	out := assignResponse{
		Assigned:    r.Assigned,
		Outcome:     string(r.Outcome),
		OrderID:     r.OrderID,
		ShipperID:   r.ShipperID,
		ShipperName: r.ShipperName,
		AssignedAt:  timePtr(r.AssignedAt),
		ExpiresAt:   timePtr(r.ExpiresAt),
	}
	if r.JobID != uuid.Nil {
		out.JobID = r.JobID.String()
	}
	return out
}

func reassignResultToResponse(r domain.ReassignResult) reassignResponse {
	return reassignResponse{
		Reassigned:        r.Reassigned,
		Outcome:           string(r.Outcome),
		OrderID:           r.OrderID,
		PreviousShipperID: r.PreviousShipperID,
		Next:              assignResultToResponse(r.Next),
	}
}

func confirmResultToResponse(r domain.ConfirmResult) confirmResponse {
	return confirmResponse{
		Confirmed:    r.Confirmed,
		Outcome:      string(r.Outcome),
		OrderID:      r.OrderID,
		ShipperID:    r.ShipperID,
		ConfirmedAt:  timePtr(r.ConfirmedAt),
		ActiveOrders: r.ActiveOrders,
	}
}

func assignmentsToResponse(o *domain.Order, hist []domain.AssignmentHistory) assignmentsResponse {
	out := assignmentsResponse{
		OrderID:       o.ID,
		Status:        string(o.Status),
		ShipperID:     o.ShipperID,
		ShipperStatus: string(o.ShipperStatus),
		AssignedAt:    o.AssignedAt,
		ConfirmedAt:   o.ShipperConfirmedAt,
		History:       make([]historyDTO, 0, len(hist)),
	}
	if o.ReassignmentJobID != nil {
		s := o.ReassignmentJobID.String()
		out.ReassignmentJobID = &s
	}
	for _, h := range hist {
		d := historyDTO{
			ShipperID:   h.ShipperID,
			AssignedAt:  h.AssignedAt,
			RespondedAt: h.RespondedAt,
			Notes:       h.Notes,
		}
		if h.Response != nil {
			d.Response = string(*h.Response)
		}
		out.History = append(out.History, d)
	}
	return out
}

func shipperToResponse(s domain.ShipperProfile) shipperDTO {
	return shipperDTO{
		UserID:              s.UserID,
		Name:                s.Name,
		Phone:               s.Phone,
		IsWorking:           s.IsWorking,
		CurrentActiveOrders: s.CurrentActiveOrders,
		MaxActiveOrders:     s.MaxActiveOrders,
		LastAssignedAt:      s.LastAssignedAt,
	}
}

func shippersToResponse(list []domain.ShipperProfile) []shipperDTO {
	out := make([]shipperDTO, 0, len(list))
	for _, s := range list {
		out = append(out, shipperToResponse(s))
	}
	return out
}

func (r registerShipperRequest) toModel() *domain.ShipperProfile {
	return &domain.ShipperProfile{
		UserID:          r.UserID,
		Name:            r.Name,
		Phone:           r.Phone,
		IsWorking:       r.IsWorking,
		MaxActiveOrders: r.MaxActiveOrders,
	}
}
