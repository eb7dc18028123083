package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"shipper-dispatch/internal/domain"
)

// JobRepo stores timeout jobs.
type JobRepo struct{ db *pgxpool.Pool }

// NewJobRepo creates a new JobRepo.
func NewJobRepo(db *pgxpool.Pool) *JobRepo { return &JobRepo{db: db} }

// ClaimDueJobs leases due scheduled jobs and running jobs whose lease expired.
// Concurrent pollers skip each other's rows.
func (r *JobRepo) ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.TimeoutJob, error) {
	rows, err := r.db.Query(ctx, `
        UPDATE dispatch_jobs
        SET status = 'running',
            attempts = attempts + 1,
            locked_until = $2,
            updated_at = now()
        WHERE id IN (
            SELECT id FROM dispatch_jobs
            WHERE (status = 'scheduled' AND run_at <= $1)
               OR (status = 'running' AND locked_until <= $1)
            ORDER BY run_at
            LIMIT $3
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, order_id, run_at, status, attempts
    `, now, now.Add(lease), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TimeoutJob, 0, limit)
	for rows.Next() {
		var j domain.TimeoutJob
		if err := rows.Scan(&j.ID, &j.OrderID, &j.RunAt, &j.Status, &j.Attempts); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, k int) bool { return out[i].RunAt.Before(out[k].RunAt) })
	return out, nil
}

// CompleteJob marks a job done.
func (r *JobRepo) CompleteJob(ctx context.Context, id uuid.UUID) error {
	return r.settle(ctx, id, `status = 'done'`)
}

// RetryJob puts a job back on schedule at runAt.
func (r *JobRepo) RetryJob(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string) error {
	return r.settle(ctx, id, `status = 'scheduled', run_at = $2, last_error = $3`, runAt, lastErr)
}

// FailJob marks a job permanently failed.
func (r *JobRepo) FailJob(ctx context.Context, id uuid.UUID, lastErr string) error {
	return r.settle(ctx, id, `status = 'failed', last_error = $2`, lastErr)
}

func (r *JobRepo) settle(ctx context.Context, id uuid.UUID, set string, args ...any) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE dispatch_jobs SET `+set+`, locked_until = NULL, updated_at = now() WHERE id = $1`,
		append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("settle job %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return notFound("job", id)
	}
	return nil
}

// JobsForOrder returns every job of an order, oldest run first.
func (r *JobRepo) JobsForOrder(ctx context.Context, orderID int64) ([]domain.TimeoutJob, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, order_id, run_at, status, attempts
        FROM dispatch_jobs
        WHERE order_id = $1
        ORDER BY run_at, created_at
    `, orderID)
	if err != nil {
		return nil, fmt.Errorf("list jobs of order %d: %w", orderID, err)
	}
	defer rows.Close()

	out := make([]domain.TimeoutJob, 0, 2)
	for rows.Next() {
		var j domain.TimeoutJob
		if err := rows.Scan(&j.ID, &j.OrderID, &j.RunAt, &j.Status, &j.Attempts); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
