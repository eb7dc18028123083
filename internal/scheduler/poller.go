package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// JobStore claims and settles due jobs outside of dispatch transactions.
type JobStore interface {
	// ClaimDueJobs moves up to limit due jobs to running, bumps their attempts
	// and leases them until now+lease. Expired leases are claimable again.
	ClaimDueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.TimeoutJob, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	RetryJob(ctx context.Context, id uuid.UUID, runAt time.Time, lastErr string) error
	FailJob(ctx context.Context, id uuid.UUID, lastErr string) error
}

// FireFunc handles a due job. It must be idempotent: a job may be delivered more than once.
type FireFunc func(ctx context.Context, job domain.TimeoutJob) error

// PollerConfig describes how the poller claims and retries jobs.
type PollerConfig struct {
	Interval    time.Duration
	Lease       time.Duration
	BatchSize   int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Poller delivers due timeout jobs to a FireFunc.
type Poller struct {
	store  JobStore
	fire   FireFunc
	cfg    PollerConfig
	logger logx.Logger
	now    func() time.Time
}

// NewPoller creates a Poller, filling zero config values with defaults.
func NewPoller(store JobStore, fire FireFunc, cfg PollerConfig, logger logx.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	logger = logx.OrNop(logger)
	return &Poller{
		store:  store,
		fire:   fire,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("timeout poller started", logx.Duration("interval", p.cfg.Interval))
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("timeout poller stopped")
			return nil
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("timeout poll failed", logx.Err(err))
			}
		}
	}
}

// PollOnce claims one batch of due jobs and fires them, returning how many were claimed.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	jobs, err := p.store.ClaimDueJobs(ctx, p.now(), p.cfg.Lease, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, job := range jobs {
		if ctx.Err() != nil {
			return len(jobs), ctx.Err()
		}
		p.handle(ctx, job)
	}
	return len(jobs), nil
}

func (p *Poller) handle(ctx context.Context, job domain.TimeoutJob) {
	log := p.logger.With(
		logx.String("job_id", job.ID.String()),
		logx.Int64("order_id", job.OrderID),
		logx.Int("attempt", job.Attempts),
	)

	fireErr := p.fire(ctx, job)
	if fireErr == nil {
		if err := p.store.CompleteJob(ctx, job.ID); err != nil {
			log.Error("complete timeout job failed", logx.Err(err))
		}
		return
	}

	if job.Attempts >= p.cfg.MaxAttempts {
		log.Error("timeout job failed permanently", logx.Err(fireErr))
		if err := p.store.FailJob(ctx, job.ID, fireErr.Error()); err != nil {
			log.Error("mark timeout job failed", logx.Err(err))
		}
		return
	}

	delay := backoff(p.cfg.BaseBackoff, p.cfg.MaxBackoff, job.Attempts)
	log.Warn("timeout job retry", logx.Duration("delay", delay), logx.Err(fireErr))
	if err := p.store.RetryJob(ctx, job.ID, p.now().Add(delay), fireErr.Error()); err != nil {
		log.Error("reschedule timeout job failed", logx.Err(err))
	}
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if d > max || d <= 0 {
		return max
	}
	return d
}
