package shipper

import (
	"context"

	"shipper-dispatch/internal/domain"
)

// shipperRepository defines storage operations required by the registry.
type shipperRepository interface {
	Get(ctx context.Context, id int64) (*domain.ShipperProfile, error)
	List(ctx context.Context) ([]domain.ShipperProfile, error)
	ListEligible(ctx context.Context) ([]domain.ShipperProfile, error)
	Create(ctx context.Context, p *domain.ShipperProfile) error
	SetWorking(ctx context.Context, id int64, working bool) (bool, error)
	RecomputeLoad(ctx context.Context, id int64) (int, error)
}
