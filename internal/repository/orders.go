package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipper-dispatch/internal/domain"
)

// OrderRepo reads committed order state.
type OrderRepo struct{ db *pgxpool.Pool }

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(db *pgxpool.Pool) *OrderRepo { return &OrderRepo{db: db} }

// GetOrder returns an order with its lines, nil when missing.
func (r *OrderRepo) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order %d: %w", id, err)
	}
	if o.Lines, err = loadLines(ctx, r.db, id); err != nil {
		return nil, fmt.Errorf("load order %d lines: %w", id, err)
	}
	return o, nil
}

// ListHistory returns the assignment ledger of an order, oldest first.
func (r *OrderRepo) ListHistory(ctx context.Context, orderID int64) ([]domain.AssignmentHistory, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+historyColumns+`
        FROM assignment_history
        WHERE order_id = $1
        ORDER BY id
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history of order %d: %w", orderID, err)
	}
	defer rows.Close()

	out := make([]domain.AssignmentHistory, 0, 4)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListPreOrderCandidates returns lines dated day of confirmed orders without a shipper.
func (r *OrderRepo) ListPreOrderCandidates(ctx context.Context, day time.Time) ([]domain.DueOrder, error) {
	return r.dueLines(ctx, day, `o.shipper_id IS NULL`)
}

// ListUrgentCandidates returns lines dated day of confirmed orders whose shipper has not accepted.
func (r *OrderRepo) ListUrgentCandidates(ctx context.Context, day time.Time) ([]domain.DueOrder, error) {
	return r.dueLines(ctx, day, `o.shipper_status <> 'accepted'`)
}

func (r *OrderRepo) dueLines(ctx context.Context, day time.Time, predicate string) ([]domain.DueOrder, error) {
	rows, err := r.db.Query(ctx, `
        SELECT o.id, o.code, o.shipper_id, o.shipper_status, l.delivery_date, l.window_start, l.window_end
        FROM orders o
        JOIN order_lines l ON l.order_id = o.id
        WHERE l.delivery_date = $1::date
          AND o.status = 'confirmed'
          AND `+predicate+`
        ORDER BY o.id, l.window_start
    `, dateArg(day))
	if err != nil {
		return nil, fmt.Errorf("list due orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DueOrder, 0, 8)
	for rows.Next() {
		var (
			d          domain.DueOrder
			start, end pgtype.Time
		)
		if err := rows.Scan(&d.OrderID, &d.Code, &d.ShipperID, &d.ShipperStatus, &d.DeliveryDate, &start, &end); err != nil {
			return nil, err
		}
		d.Window = domain.TimeWindow{Start: fromPgTime(start), End: fromPgTime(end)}
		out = append(out, d)
	}
	return out, rows.Err()
}
