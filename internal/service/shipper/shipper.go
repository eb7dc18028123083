package shipper

import (
	"context"
	"regexp"
	"strings"
	"time"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

var phoneRe = regexp.MustCompile(`^\+[0-9]{11}$`)

// Registry is the shipper pool: working status, capacity and active load.
type Registry struct {
	repo             shipperRepository
	logger           logx.Logger
	operationTimeout time.Duration
}

// NewRegistry creates and configures a shipper Registry.
func NewRegistry(r shipperRepository, timeout time.Duration, logger logx.Logger) *Registry {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	logger = logx.OrNop(logger)
	return &Registry{repo: r, logger: logger, operationTimeout: timeout}
}

func (r *Registry) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.operationTimeout)
}

func validateCreate(p *domain.ShipperProfile) error {
	if p == nil {
		return apperr.ErrInvalid
	}
	if p.UserID <= 0 || strings.TrimSpace(p.Name) == "" {
		return apperr.ErrInvalid
	}
	if p.Phone != "" && !phoneRe.MatchString(p.Phone) {
		return apperr.ErrInvalid
	}
	if p.MaxActiveOrders <= 0 {
		return apperr.ErrInvalid
	}
	return nil
}

// Get retrieves a shipper by user id.
func (r *Registry) Get(ctx context.Context, id int64) (*domain.ShipperProfile, error) {
	if id <= 0 {
		return nil, apperr.ErrInvalid
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	p, err := r.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

// List returns every registered shipper.
func (r *Registry) List(ctx context.Context) ([]domain.ShipperProfile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.repo.List(ctx)
}

// ListEligible returns shippers that are working and below capacity.
func (r *Registry) ListEligible(ctx context.Context) ([]domain.ShipperProfile, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.repo.ListEligible(ctx)
}

// Register creates a shipper profile with an empty load.
func (r *Registry) Register(ctx context.Context, p *domain.ShipperProfile) error {
	if err := validateCreate(p); err != nil {
		return err
	}
	p.CurrentActiveOrders = 0
	p.LastAssignedAt = nil
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.repo.Create(ctx, p); err != nil {
		return err
	}
	r.logger.Info("shipper registered",
		logx.String("event", "shipper_registered"),
		logx.Int64("shipper_id", p.UserID),
		logx.Int("max_active_orders", p.MaxActiveOrders),
	)
	return nil
}

// SetWorking toggles whether the shipper may receive offers.
func (r *Registry) SetWorking(ctx context.Context, id int64, working bool) error {
	if id <= 0 {
		return apperr.ErrInvalid
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	ok, err := r.repo.SetWorking(ctx, id, working)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	r.logger.Info("shipper availability changed",
		logx.String("event", "shipper_working_changed"),
		logx.Int64("shipper_id", id),
		logx.Bool("is_working", working),
	)
	return nil
}

// RecomputeLoad repairs the active-order counter from order state: it counts
// accepted orders that have not reached a terminal status.
func (r *Registry) RecomputeLoad(ctx context.Context, id int64) (int, error) {
	if id <= 0 {
		return 0, apperr.ErrInvalid
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	n, err := r.repo.RecomputeLoad(ctx, id)
	if err != nil {
		return 0, err
	}
	r.logger.Info("shipper load recomputed",
		logx.String("event", "load_recomputed"),
		logx.Int64("shipper_id", id),
		logx.Int("active_orders", n),
	)
	return n, nil
}
