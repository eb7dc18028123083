package dispatchtx

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
)

// Offer is the payload of a conditional "set offer" write.
type Offer struct {
	OrderID    int64
	ShipperID  int64
	AssignedAt time.Time
	JobID      uuid.UUID
	// Version is the order version read earlier in the transaction.
	Version int64
}

// Repository is the transactional view of dispatch state.
// Every order write is a compare-and-swap on Order.Version and reports false when it lost.
type Repository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	ListEligibleShippersForUpdate(ctx context.Context) ([]domain.ShipperProfile, error)
	GetShipperForUpdate(ctx context.Context, id int64) (*domain.ShipperProfile, error)

	SetOffer(ctx context.Context, o Offer) (bool, error)
	ClearAssignment(ctx context.Context, orderID, version int64) (bool, error)
	AcceptOffer(ctx context.Context, orderID, shipperID, version int64, at time.Time) (bool, error)

	TouchShipper(ctx context.Context, id int64, at time.Time) error
	IncrementActiveOrders(ctx context.Context, id int64) (bool, error)
	RecomputeLoad(ctx context.Context, id int64) (int, error)

	InsertHistory(ctx context.Context, h *domain.AssignmentHistory) error
	CloseOpenHistory(ctx context.Context, orderID, shipperID int64, resp domain.AssignmentResponse, at time.Time, notes string) (bool, error)

	InsertJob(ctx context.Context, j domain.TimeoutJob) error
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)

	AppendEvent(ctx context.Context, e domain.Event) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
