package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
)

// ClaimDueJobs leases due scheduled jobs and running jobs whose lease expired.
func (s *Store) ClaimDueJobs(_ context.Context, now time.Time, lease time.Duration, limit int) ([]domain.TimeoutJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]jobRow, 0, limit)
	for _, r := range s.st.jobs {
		switch {
		case r.job.Status == domain.JobScheduled && !r.job.RunAt.After(now):
		case r.job.Status == domain.JobRunning && !r.lockedUntil.After(now):
		default:
			continue
		}
		due = append(due, r)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].job.RunAt.Before(due[j].job.RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	out := make([]domain.TimeoutJob, 0, len(due))
	for _, r := range due {
		r.job.Status = domain.JobRunning
		r.job.Attempts++
		r.lockedUntil = now.Add(lease)
		s.st.jobs[r.job.ID] = r
		out = append(out, r.job)
	}
	return out, nil
}

// CompleteJob marks a job done.
func (s *Store) CompleteJob(_ context.Context, id uuid.UUID) error {
	return s.settleJob(id, func(r *jobRow) { r.job.Status = domain.JobDone })
}

// RetryJob puts a job back on schedule at runAt.
func (s *Store) RetryJob(_ context.Context, id uuid.UUID, runAt time.Time, lastErr string) error {
	return s.settleJob(id, func(r *jobRow) {
		r.job.Status = domain.JobScheduled
		r.job.RunAt = runAt
		r.lastErr = lastErr
	})
}

// FailJob marks a job permanently failed.
func (s *Store) FailJob(_ context.Context, id uuid.UUID, lastErr string) error {
	return s.settleJob(id, func(r *jobRow) {
		r.job.Status = domain.JobFailed
		r.lastErr = lastErr
	})
}

func (s *Store) settleJob(id uuid.UUID, fn func(*jobRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.jobs[id]
	if !ok {
		return jobNotFound(id)
	}
	fn(&r)
	r.lockedUntil = time.Time{}
	s.st.jobs[id] = r
	return nil
}
