package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
)

// DefaultAcceptTimeout is how long a shipper has to accept an offer.
const DefaultAcceptTimeout = 3 * time.Minute

// JobWriter persists timeout jobs. Dispatch passes its open transaction so a job
// is armed or cancelled atomically with the order write that references it.
type JobWriter interface {
	InsertJob(ctx context.Context, j domain.TimeoutJob) error
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)
}

// Scheduler arms and cancels acceptance timeouts.
type Scheduler struct {
	delay time.Duration
	newID func() uuid.UUID
}

// New creates a Scheduler with the given acceptance delay.
func New(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultAcceptTimeout
	}
	return &Scheduler{delay: delay, newID: uuid.New}
}

// Delay returns the configured acceptance window.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Arm schedules a timeout for orderID that fires at now+delay and returns its handle.
func (s *Scheduler) Arm(ctx context.Context, w JobWriter, orderID int64, now time.Time) (domain.TimeoutJob, error) {
	job := domain.TimeoutJob{
		ID:      s.newID(),
		OrderID: orderID,
		RunAt:   now.Add(s.delay),
		Status:  domain.JobScheduled,
	}
	if err := w.InsertJob(ctx, job); err != nil {
		return domain.TimeoutJob{}, fmt.Errorf("arm timeout for order %d: %w", orderID, err)
	}
	return job, nil
}

// Cancel withdraws a pending job. It is best-effort: a job that was already
// claimed by the poller reports false, and the fire handler re-validates state.
func (s *Scheduler) Cancel(ctx context.Context, w JobWriter, id uuid.UUID) (bool, error) {
	ok, err := w.CancelJob(ctx, id)
	if err != nil {
		return false, fmt.Errorf("cancel timeout %s: %w", id, err)
	}
	return ok, nil
}
