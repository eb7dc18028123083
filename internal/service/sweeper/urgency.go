package sweeper

import (
	"context"
	"time"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// SweepUrgent is the metric label of the urgency sweep.
const SweepUrgent = "urgent"

// DefaultUrgencyThreshold is how close a window start must be to escalate.
const DefaultUrgencyThreshold = time.Hour

type urgencyPayload struct {
	OrderCode        string `json:"order_code"`
	MinutesRemaining int    `json:"minutes_remaining"`
	DispatchState    string `json:"dispatch_state"`
	Window           string `json:"window"`
}

// UrgencyMonitor escalates orders whose delivery window is close while no
// shipper has accepted them. It never mutates dispatch state.
type UrgencyMonitor struct {
	source    candidateSource
	notifier  Notifier
	metrics   Metrics
	logger    logx.Logger
	loc       *time.Location
	threshold time.Duration
	now       func() time.Time
}

// NewUrgencyMonitor creates an UrgencyMonitor.
func NewUrgencyMonitor(src candidateSource, n Notifier, m Metrics, threshold time.Duration, loc *time.Location, logger logx.Logger) *UrgencyMonitor {
	if m == nil {
		m = nopMetrics{}
	}
	if threshold <= 0 {
		threshold = DefaultUrgencyThreshold
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logx.OrNop(logger)
	return &UrgencyMonitor{
		source:    src,
		notifier:  n,
		metrics:   m,
		logger:    logger,
		loc:       loc,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SweepUrgent emits one critical escalation per urgent order.
func (u *UrgencyMonitor) SweepUrgent(ctx context.Context) (domain.UrgencyReport, error) {
	started := time.Now()
	defer func() { u.metrics.SweepDuration(SweepUrgent, time.Since(started)) }()

	now := u.now()
	rows, err := u.source.ListUrgentCandidates(ctx, domain.StartOfDay(now, u.loc))
	if err != nil {
		return domain.UrgencyReport{}, err
	}

	var report domain.UrgencyReport
	escalated := make(map[int64]struct{}, len(rows))
	scanned := make(map[int64]struct{}, len(rows))
	for _, due := range rows {
		scanned[due.OrderID] = struct{}{}
		if _, done := escalated[due.OrderID]; done {
			continue
		}
		left, urgent := u.remaining(due, now)
		if !urgent {
			continue
		}
		escalated[due.OrderID] = struct{}{}

		payload := urgencyPayload{
			OrderCode:        due.Code,
			MinutesRemaining: int(left / time.Minute),
			DispatchState:    dispatchState(due),
			Window:           due.Window.String(),
		}
		e, err := domain.NewEvent(domain.EventUrgencyEscalation, domain.SeverityCritical, due.OrderID, due.ShipperID, payload, now)
		if err != nil {
			u.logger.Error("build event failed", logx.Int64("order_id", due.OrderID), logx.Err(err))
			continue
		}
		u.notifier.Notify(ctx, e)
		u.logger.Warn("urgent order without accepted shipper",
			logx.String("event", "urgency_escalation"),
			logx.Int64("order_id", due.OrderID),
			logx.Int("minutes_remaining", payload.MinutesRemaining),
			logx.String("dispatch_state", payload.DispatchState),
		)
	}
	report.Scanned = len(scanned)
	report.Escalated = len(escalated)
	u.metrics.UrgentOrders(report.Escalated)
	return report, nil
}

// remaining reports the time until the window starts and whether the line is
// urgent: the start is within the threshold and the window has not closed.
func (u *UrgencyMonitor) remaining(due domain.DueOrder, now time.Time) (time.Duration, bool) {
	date := domain.LocalDate(due.DeliveryDate, u.loc)
	start := due.Window.On(date)
	end := date.Add(due.Window.End)
	if end.Before(start) {
		end = start
	}
	left := start.Sub(now)
	return left, left <= u.threshold && end.After(now)
}

func dispatchState(due domain.DueOrder) string {
	if due.ShipperID == nil || due.ShipperStatus == domain.ShipperNone {
		return "unassigned"
	}
	return string(due.ShipperStatus)
}
