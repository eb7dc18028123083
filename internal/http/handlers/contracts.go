package handlers

import (
	"context"

	"shipper-dispatch/internal/domain"
)

type dispatchUsecase interface {
	AssignOrder(ctx context.Context, orderID int64) (domain.AssignResult, error)
	ReassignOrder(ctx context.Context, orderID int64) (domain.ReassignResult, error)
	ManualReassign(ctx context.Context, orderID, shipperID int64, notes string) (domain.AssignResult, error)
	ConfirmPickup(ctx context.Context, orderID, shipperID int64) (domain.ConfirmResult, error)
}

type assignmentQuery interface {
	Assignments(ctx context.Context, orderID int64) (*domain.Order, []domain.AssignmentHistory, error)
}

type shipperUsecase interface {
	Get(ctx context.Context, id int64) (*domain.ShipperProfile, error)
	List(ctx context.Context) ([]domain.ShipperProfile, error)
	ListEligible(ctx context.Context) ([]domain.ShipperProfile, error)
	Register(ctx context.Context, p *domain.ShipperProfile) error
	SetWorking(ctx context.Context, id int64, working bool) error
	RecomputeLoad(ctx context.Context, id int64) (int, error)
}

type preOrderSweeper interface {
	SweepToday(ctx context.Context) (domain.SweepReport, error)
}

type urgencySweeper interface {
	SweepUrgent(ctx context.Context) (domain.UrgencyReport, error)
}
