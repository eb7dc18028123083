package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
)

// ShipperRepo represents shipper profile repository.
type ShipperRepo struct{ db *pgxpool.Pool }

// NewShipperRepo creates a new ShipperRepo.
func NewShipperRepo(db *pgxpool.Pool) *ShipperRepo { return &ShipperRepo{db: db} }

// Get - returns a shipper by user id, nil when missing.
func (r *ShipperRepo) Get(ctx context.Context, id int64) (*domain.ShipperProfile, error) {
	p, err := scanShipper(r.db.QueryRow(ctx, `SELECT `+shipperColumns+` FROM shipper_profiles WHERE user_id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shipper %d: %w", id, err)
	}
	return &p, nil
}

// List - returns every shipper ordered by id.
func (r *ShipperRepo) List(ctx context.Context) ([]domain.ShipperProfile, error) {
	rows, err := r.db.Query(ctx, `SELECT `+shipperColumns+` FROM shipper_profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list shippers: %w", err)
	}
	return collectShippers(rows)
}

// ListEligible - returns working shippers below capacity.
func (r *ShipperRepo) ListEligible(ctx context.Context) ([]domain.ShipperProfile, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+shipperColumns+`
        FROM shipper_profiles
        WHERE is_working AND current_active_orders < max_active_orders
        ORDER BY user_id
    `)
	if err != nil {
		return nil, fmt.Errorf("list eligible shippers: %w", err)
	}
	return collectShippers(rows)
}

// Create - registers a new shipper profile.
func (r *ShipperRepo) Create(ctx context.Context, p *domain.ShipperProfile) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO shipper_profiles (user_id, name, phone, is_working, current_active_orders, max_active_orders, last_assigned_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, p.UserID, p.Name, p.Phone, p.IsWorking, p.CurrentActiveOrders, p.MaxActiveOrders, p.LastAssignedAt)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("shipper %d: %w", p.UserID, apperr.ErrConflict)
		}
		return fmt.Errorf("create shipper: %w", err)
	}
	return nil
}

// SetWorking - toggles availability and reports whether the shipper exists.
func (r *ShipperRepo) SetWorking(ctx context.Context, id int64, working bool) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE shipper_profiles SET is_working = $2, updated_at = now() WHERE user_id = $1
    `, id, working)
	if err != nil {
		return false, fmt.Errorf("set shipper %d working: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

// RecomputeLoad - overwrites the active-order counter from order state.
func (r *ShipperRepo) RecomputeLoad(ctx context.Context, id int64) (int, error) {
	return recomputeLoad(ctx, r.db, id)
}
