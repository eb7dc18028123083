package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"shipper-dispatch/internal/domain"
)

const orderColumns = `id, code, status, shipper_id, shipper_status, assigned_at,
	shipper_confirmed_at, reassignment_job_id, version`

const shipperColumns = `user_id, name, phone, is_working, current_active_orders,
	max_active_orders, last_assigned_at`

const historyColumns = `id, order_id, shipper_id, assigned_at, response, responded_at, notes`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	if err := row.Scan(&o.ID, &o.Code, &o.Status, &o.ShipperID, &o.ShipperStatus, &o.AssignedAt,
		&o.ShipperConfirmedAt, &o.ReassignmentJobID, &o.Version); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanShipper(row pgx.Row) (domain.ShipperProfile, error) {
	var p domain.ShipperProfile
	err := row.Scan(&p.UserID, &p.Name, &p.Phone, &p.IsWorking, &p.CurrentActiveOrders,
		&p.MaxActiveOrders, &p.LastAssignedAt)
	return p, err
}

func scanHistory(row pgx.Row) (domain.AssignmentHistory, error) {
	var (
		h    domain.AssignmentHistory
		resp *string
	)
	if err := row.Scan(&h.ID, &h.OrderID, &h.ShipperID, &h.AssignedAt, &resp, &h.RespondedAt, &h.Notes); err != nil {
		return h, err
	}
	if resp != nil {
		r := domain.AssignmentResponse(*resp)
		h.Response = &r
	}
	return h, nil
}

func collectShippers(rows pgx.Rows) ([]domain.ShipperProfile, error) {
	defer rows.Close()
	out := make([]domain.ShipperProfile, 0, 8)
	for rows.Next() {
		p, err := scanShipper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]domain.OrderLine, error) {
	rows, err := q.Query(ctx, `
        SELECT id, order_id, delivery_date, window_start, window_end
        FROM order_lines
        WHERE order_id = $1
        ORDER BY delivery_date, window_start, id
    `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.OrderLine, 0, 2)
	for rows.Next() {
		var (
			l          domain.OrderLine
			start, end pgtype.Time
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.DeliveryDate, &start, &end); err != nil {
			return nil, err
		}
		l.Window = domain.TimeWindow{Start: fromPgTime(start), End: fromPgTime(end)}
		out = append(out, l)
	}
	return out, rows.Err()
}

func fromPgTime(t pgtype.Time) time.Duration {
	return time.Duration(t.Microseconds) * time.Microsecond
}

func toPgTime(d time.Duration) pgtype.Time {
	return pgtype.Time{Microseconds: d.Microseconds(), Valid: true}
}

// dateArg formats a calendar day for a $n::date parameter, ignoring the zone.
func dateArg(day time.Time) string {
	return day.Format(time.DateOnly)
}
