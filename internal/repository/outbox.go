package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipper-dispatch/internal/domain"
)

// OutboxRepo stores dispatch events until they are published.
type OutboxRepo struct{ db *pgxpool.Pool }

// NewOutboxRepo creates a new OutboxRepo.
func NewOutboxRepo(db *pgxpool.Pool) *OutboxRepo { return &OutboxRepo{db: db} }

// AppendEvent writes an event outside any dispatch transaction.
func (r *OutboxRepo) AppendEvent(ctx context.Context, e domain.Event) error {
	return appendEvent(ctx, r.db, e)
}

// ClaimEvents leases up to limit pending events in append order.
func (r *OutboxRepo) ClaimEvents(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx, `
        WITH claimed AS (
            UPDATE dispatch_events
            SET locked_until = $2
            WHERE id IN (
                SELECT id FROM dispatch_events
                WHERE status = 'pending' AND (locked_until IS NULL OR locked_until <= $1)
                ORDER BY seq
                LIMIT $3
                FOR UPDATE SKIP LOCKED
            )
            RETURNING seq, id, type, severity, order_id, shipper_id, payload, created_at, attempts
        )
        SELECT id, type, severity, order_id, shipper_id, payload, created_at, attempts
        FROM claimed
        ORDER BY seq
    `, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0, limit)
	for rows.Next() {
		var (
			e       domain.Event
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Severity, &e.OrderID, &e.ShipperID, &payload, &e.CreatedAt, &e.Attempts); err != nil {
			return nil, err
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished marks an event delivered.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE dispatch_events
        SET status = 'published', published_at = $2, locked_until = NULL
        WHERE id = $1
    `, id, at)
	if err != nil {
		return fmt.Errorf("mark event %s published: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound("event", id)
	}
	return nil
}

// MarkFailed records a delivery failure; final moves the event out of the queue.
func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, final bool, lastErr string) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE dispatch_events
        SET attempts = $2,
            last_error = $4,
            status = CASE WHEN $3 THEN 'failed' ELSE status END,
            locked_until = NULL
        WHERE id = $1
    `, id, attempts, final, lastErr)
	if err != nil {
		return fmt.Errorf("mark event %s failed: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound("event", id)
	}
	return nil
}

// EventStatus returns the delivery state of an event.
func (r *OutboxRepo) EventStatus(ctx context.Context, id uuid.UUID) (string, error) {
	var st string
	if err := r.db.QueryRow(ctx, `SELECT status FROM dispatch_events WHERE id = $1`, id).Scan(&st); err != nil {
		if IsNotFound(err) {
			return "", notFound("event", id)
		}
		return "", fmt.Errorf("event %s status: %w", id, err)
	}
	return st, nil
}

func appendEvent(ctx context.Context, q querier, e domain.Event) error {
	var payload any
	if len(e.Payload) > 0 {
		payload = string(e.Payload)
	}
	_, err := q.Exec(ctx, `
        INSERT INTO dispatch_events (id, type, severity, order_id, shipper_id, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
    `, e.ID, string(e.Type), string(e.Severity), e.OrderID, e.ShipperID, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.Type, err)
	}
	return nil
}
