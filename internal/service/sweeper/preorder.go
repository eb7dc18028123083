package sweeper

import (
	"context"
	"time"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// SweepPreOrders is the metric label of the pre-order sweep.
const SweepPreOrders = "pre_orders"

type preOrderPayload struct {
	OrderCode    string `json:"order_code"`
	ShipperName  string `json:"shipper_name,omitempty"`
	DeliveryDate string `json:"delivery_date"`
	Window       string `json:"window"`
	Reason       string `json:"reason,omitempty"`
}

// PreOrderSweeper dispatches confirmed orders whose delivery day has come.
type PreOrderSweeper struct {
	source   candidateSource
	assigner assigner
	notifier Notifier
	metrics  Metrics
	logger   logx.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewPreOrderSweeper creates a PreOrderSweeper. A nil metrics recorder is allowed.
func NewPreOrderSweeper(src candidateSource, a assigner, n Notifier, m Metrics, loc *time.Location, logger logx.Logger) *PreOrderSweeper {
	if m == nil {
		m = nopMetrics{}
	}
	if loc == nil {
		loc = time.UTC
	}
	logger = logx.OrNop(logger)
	return &PreOrderSweeper{
		source:   src,
		assigner: a,
		notifier: n,
		metrics:  m,
		logger:   logger,
		loc:      loc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SweepToday runs assignment for every confirmed, unassigned order with a line
// dated today. A failing order is logged and the batch continues.
func (s *PreOrderSweeper) SweepToday(ctx context.Context) (domain.SweepReport, error) {
	started := time.Now()
	defer func() { s.metrics.SweepDuration(SweepPreOrders, time.Since(started)) }()

	now := s.now()
	today := domain.StartOfDay(now, s.loc)
	rows, err := s.source.ListPreOrderCandidates(ctx, today)
	if err != nil {
		return domain.SweepReport{}, err
	}

	var report domain.SweepReport
	for _, due := range groupByOrder(rows) {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Scanned++

		res, err := s.assigner.AssignOrder(ctx, due.OrderID)
		if err != nil {
			report.Failed++
			s.logger.Error("pre-order assignment failed",
				logx.Int64("order_id", due.OrderID),
				logx.Err(err),
			)
			continue
		}

		payload := preOrderPayload{
			OrderCode:    due.Code,
			DeliveryDate: due.DeliveryDate.Format(time.DateOnly),
			Window:       due.Window.String(),
		}
		switch {
		case res.Assigned:
			report.Assigned++
			payload.ShipperName = res.ShipperName
			shipperID := res.ShipperID
			s.notify(ctx, domain.EventPreOrderAssigned, domain.SeverityInfo, due.OrderID, &shipperID, payload, now)
		case res.Outcome == domain.OutcomeNoEligible:
			report.Skipped++
			payload.Reason = string(res.Outcome)
			s.notify(ctx, domain.EventPreOrderUnassigned, domain.SeverityWarning, due.OrderID, nil, payload, now)
		default:
			report.Skipped++
		}
	}

	s.logger.Info("pre-order sweep finished",
		logx.String("event", "preorder_sweep"),
		logx.Int("scanned", report.Scanned),
		logx.Int("assigned", report.Assigned),
		logx.Int("skipped", report.Skipped),
		logx.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *PreOrderSweeper) notify(ctx context.Context, t domain.EventType, sev domain.Severity, orderID int64, shipperID *int64, payload any, now time.Time) {
	e, err := domain.NewEvent(t, sev, orderID, shipperID, payload, now)
	if err != nil {
		s.logger.Error("build event failed", logx.String("type", string(t)), logx.Err(err))
		return
	}
	s.notifier.Notify(ctx, e)
}
