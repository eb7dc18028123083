package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/ports/dispatchtx"
)

// DispatchRepo runs dispatch transactions.
type DispatchRepo struct {
	db *pgxpool.Pool
}

// NewDispatchRepo creates a new DispatchRepo.
func NewDispatchRepo(db *pgxpool.Pool) *DispatchRepo {
	return &DispatchRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DispatchRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	// отменяем в случае паники
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRepo is the transactional view of dispatch state.
type TxRepo struct {
	tx pgx.Tx
}

var _ dispatchtx.Repository = (*TxRepo)(nil)

// GetOrderForUpdate locks the order row and loads its lines; nil when missing.
func (r *TxRepo) GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %d for update: %w", id, err)
	}
	if o.Lines, err = loadLines(ctx, r.tx, id); err != nil {
		return nil, fmt.Errorf("load order %d lines: %w", id, err)
	}
	return o, nil
}

// ListEligibleShippersForUpdate locks every shipper that may receive an offer.
func (r *TxRepo) ListEligibleShippersForUpdate(ctx context.Context) ([]domain.ShipperProfile, error) {
	rows, err := r.tx.Query(ctx, `
        SELECT `+shipperColumns+`
        FROM shipper_profiles
        WHERE is_working AND current_active_orders < max_active_orders
        ORDER BY user_id
        FOR UPDATE
    `)
	if err != nil {
		return nil, fmt.Errorf("list eligible shippers: %w", err)
	}
	out, err := collectShippers(rows)
	if err != nil {
		return nil, fmt.Errorf("scan eligible shippers: %w", err)
	}
	return out, nil
}

// GetShipperForUpdate locks a shipper row; nil when missing.
func (r *TxRepo) GetShipperForUpdate(ctx context.Context, id int64) (*domain.ShipperProfile, error) {
	p, err := scanShipper(r.tx.QueryRow(ctx, `SELECT `+shipperColumns+` FROM shipper_profiles WHERE user_id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get shipper %d for update: %w", id, err)
	}
	return &p, nil
}

// SetOffer offers an unassigned order to a shipper.
func (r *TxRepo) SetOffer(ctx context.Context, o dispatchtx.Offer) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET shipper_id = $2,
            shipper_status = 'offered',
            assigned_at = $3,
            shipper_confirmed_at = NULL,
            reassignment_job_id = $4,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $5 AND shipper_id IS NULL
    `, o.OrderID, o.ShipperID, o.AssignedAt, o.JobID, o.Version)
	if err != nil {
		return false, fmt.Errorf("set offer on order %d: %w", o.OrderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// ClearAssignment removes the shipper from an assigned order.
func (r *TxRepo) ClearAssignment(ctx context.Context, orderID, version int64) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET shipper_id = NULL,
            shipper_status = '',
            assigned_at = NULL,
            shipper_confirmed_at = NULL,
            reassignment_job_id = NULL,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $2 AND shipper_id IS NOT NULL
    `, orderID, version)
	if err != nil {
		return false, fmt.Errorf("clear assignment of order %d: %w", orderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// AcceptOffer moves an offered order to accepted for its current shipper.
func (r *TxRepo) AcceptOffer(ctx context.Context, orderID, shipperID, version int64, at time.Time) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE orders
        SET shipper_status = 'accepted',
            shipper_confirmed_at = $3,
            reassignment_job_id = NULL,
            version = version + 1,
            updated_at = now()
        WHERE id = $1 AND version = $4 AND shipper_status = 'offered' AND shipper_id = $2
    `, orderID, shipperID, at, version)
	if err != nil {
		return false, fmt.Errorf("accept offer on order %d: %w", orderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// TouchShipper records the time of the shipper's latest offer.
func (r *TxRepo) TouchShipper(ctx context.Context, id int64, at time.Time) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE shipper_profiles SET last_assigned_at = $2, updated_at = now() WHERE user_id = $1
    `, id, at)
	if err != nil {
		return fmt.Errorf("touch shipper %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound("shipper", id)
	}
	return nil
}

// IncrementActiveOrders adds one active order unless the shipper is at capacity.
func (r *TxRepo) IncrementActiveOrders(ctx context.Context, id int64) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE shipper_profiles
        SET current_active_orders = current_active_orders + 1, updated_at = now()
        WHERE user_id = $1 AND current_active_orders < max_active_orders
    `, id)
	if err != nil {
		return false, fmt.Errorf("increment active orders of %d: %w", id, err)
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := r.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shipper_profiles WHERE user_id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check shipper %d: %w", id, err)
	}
	if !exists {
		return false, notFound("shipper", id)
	}
	return false, nil
}

// RecomputeLoad overwrites the active-order counter from order state.
func (r *TxRepo) RecomputeLoad(ctx context.Context, id int64) (int, error) {
	return recomputeLoad(ctx, r.tx, id)
}

// InsertHistory appends an open history row and sets its id.
func (r *TxRepo) InsertHistory(ctx context.Context, h *domain.AssignmentHistory) error {
	var resp *string
	if h.Response != nil {
		s := string(*h.Response)
		resp = &s
	}
	err := r.tx.QueryRow(ctx, `
        INSERT INTO assignment_history (order_id, shipper_id, assigned_at, response, responded_at, notes)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `, h.OrderID, h.ShipperID, h.AssignedAt, resp, h.RespondedAt, h.Notes).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// CloseOpenHistory records the response on the latest open row; empty notes keep the stored ones.
func (r *TxRepo) CloseOpenHistory(ctx context.Context, orderID, shipperID int64, resp domain.AssignmentResponse, at time.Time, notes string) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE assignment_history
        SET response = $3,
            responded_at = $4,
            notes = CASE WHEN $5::text = '' THEN notes ELSE $5::text END
        WHERE id = (
            SELECT id FROM assignment_history
            WHERE order_id = $1 AND shipper_id = $2 AND response IS NULL
            ORDER BY id DESC
            LIMIT 1
        )
    `, orderID, shipperID, string(resp), at, notes)
	if err != nil {
		return false, fmt.Errorf("close history of order %d: %w", orderID, err)
	}
	return ct.RowsAffected() == 1, nil
}

// InsertJob stores a timeout job.
func (r *TxRepo) InsertJob(ctx context.Context, j domain.TimeoutJob) error {
	_, err := r.tx.Exec(ctx, `
        INSERT INTO dispatch_jobs (id, order_id, run_at, status, attempts)
        VALUES ($1, $2, $3, $4, $5)
    `, j.ID, j.OrderID, j.RunAt, string(j.Status), j.Attempts)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// CancelJob cancels a job that has not started.
func (r *TxRepo) CancelJob(ctx context.Context, id uuid.UUID) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE dispatch_jobs SET status = 'cancelled', updated_at = now()
        WHERE id = $1 AND status = 'scheduled'
    `, id)
	if err != nil {
		return false, fmt.Errorf("cancel job %s: %w", id, err)
	}
	return ct.RowsAffected() == 1, nil
}

// AppendEvent writes an outbox event in the transaction.
func (r *TxRepo) AppendEvent(ctx context.Context, e domain.Event) error {
	return appendEvent(ctx, r.tx, e)
}

func recomputeLoad(ctx context.Context, q querier, id int64) (int, error) {
	var n int
	err := q.QueryRow(ctx, `
        UPDATE shipper_profiles s
        SET current_active_orders = (
                SELECT count(*) FROM orders o
                WHERE o.shipper_id = s.user_id
                  AND o.shipper_status = 'accepted'
                  AND o.status NOT IN ('delivered', 'completed', 'cancelled')
            ),
            updated_at = now()
        WHERE s.user_id = $1
        RETURNING current_active_orders
    `, id).Scan(&n)
	if err != nil {
		if IsNotFound(err) {
			return 0, notFound("shipper", id)
		}
		return 0, fmt.Errorf("recompute load of %d: %w", id, err)
	}
	return n, nil
}
