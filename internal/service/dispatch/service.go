package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/ports/dispatchtx"
	"shipper-dispatch/internal/scheduler"
)

// errLostRace rolls back a transaction whose conditional write matched no row.
var errLostRace = errors.New("dispatch: concurrent update")

// Service is the assignment engine: it creates offers, confirms pickups and
// withdraws offers that were not accepted in time.
type Service struct {
	tx               dispatchtx.Runner
	scheduler        *scheduler.Scheduler
	metrics          Metrics
	logger           logx.Logger
	loc              *time.Location
	operationTimeout time.Duration
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the outcome recorder.
func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithLocation sets the timezone that defines the delivery calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a dispatch Service.
func NewService(tx dispatchtx.Runner, sch *scheduler.Scheduler, timeout time.Duration, logger logx.Logger, opts ...Option) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	logger = logx.OrNop(logger)
	s := &Service{
		tx:               tx,
		scheduler:        sch,
		metrics:          nopMetrics{},
		logger:           logger,
		loc:              time.UTC,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// AssignOrder offers a confirmed, unassigned order to the eligible shipper with the
// oldest last offer. Assigned is false when the order is not dispatchable or no
// shipper is eligible; neither case is an error.
func (s *Service) AssignOrder(ctx context.Context, orderID int64) (domain.AssignResult, error) {
	return s.assign(ctx, orderID, false)
}

// OnOrderConfirmed reacts to the upstream "order confirmed" signal. Pre-orders are
// left for the pre-order sweeper on their delivery day.
func (s *Service) OnOrderConfirmed(ctx context.Context, orderID int64) (domain.AssignResult, error) {
	return s.assign(ctx, orderID, true)
}

func (s *Service) assign(ctx context.Context, orderID int64, deferPreOrders bool) (domain.AssignResult, error) {
	if orderID <= 0 {
		return domain.AssignResult{}, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var res domain.AssignResult
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		res, err = s.assignTx(ctx, tx, orderID, s.now(), deferPreOrders)
		return err
	})
	switch {
	case errors.Is(err, errLostRace):
		res = domain.AssignResult{OrderID: orderID, Outcome: domain.OutcomeStale}
	case err != nil:
		return domain.AssignResult{}, err
	}

	s.metrics.Offer(res.Outcome)
	s.logAssign(res)
	return res, nil
}

func (s *Service) assignTx(ctx context.Context, tx dispatchtx.Repository, orderID int64, now time.Time, deferPreOrders bool) (domain.AssignResult, error) {
	res := domain.AssignResult{OrderID: orderID}

	o, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return res, err
	}
	if o == nil {
		return res, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	switch {
	case o.ShipperID != nil:
		res.Outcome = domain.OutcomeAlreadyAssigned
		res.ShipperID = *o.ShipperID
		return res, nil
	case !o.Dispatchable():
		res.Outcome = domain.OutcomeNotDispatchable
		return res, nil
	case deferPreOrders && o.IsPreOrder(now, s.loc):
		res.Outcome = domain.OutcomePreOrder
		return res, nil
	}

	candidates, err := tx.ListEligibleShippersForUpdate(ctx)
	if err != nil {
		return res, err
	}
	pick, ok := selectShipper(candidates)
	if !ok {
		res.Outcome = domain.OutcomeNoEligible
		return res, nil
	}
	return s.offerTx(ctx, tx, o, pick, now, "")
}

// offerTx arms a timeout and records an offer of o to sh. o must be unassigned at o.Version.
func (s *Service) offerTx(ctx context.Context, tx dispatchtx.Repository, o *domain.Order, sh domain.ShipperProfile, now time.Time, notes string) (domain.AssignResult, error) {
	job, err := s.scheduler.Arm(ctx, tx, o.ID, now)
	if err != nil {
		return domain.AssignResult{}, err
	}

	ok, err := tx.SetOffer(ctx, dispatchtx.Offer{
		OrderID:    o.ID,
		ShipperID:  sh.UserID,
		AssignedAt: now,
		JobID:      job.ID,
		Version:    o.Version,
	})
	if err != nil {
		return domain.AssignResult{}, err
	}
	if !ok {
		return domain.AssignResult{}, errLostRace
	}

	if err := tx.TouchShipper(ctx, sh.UserID, now); err != nil {
		return domain.AssignResult{}, err
	}
	if err := tx.InsertHistory(ctx, &domain.AssignmentHistory{
		OrderID:    o.ID,
		ShipperID:  sh.UserID,
		AssignedAt: now,
		Notes:      notes,
	}); err != nil {
		return domain.AssignResult{}, err
	}

	shipperID := sh.UserID
	payload := assignmentPayload{
		OrderCode:   o.Code,
		ShipperName: sh.Name,
		AssignedAt:  now,
		ExpiresAt:   job.RunAt,
		Manual:      notes != "",
	}
	if err := appendEvent(ctx, tx, domain.EventAssignmentChanged, domain.SeverityInfo, o.ID, &shipperID, payload, now); err != nil {
		return domain.AssignResult{}, err
	}

	return domain.AssignResult{
		Assigned:    true,
		Outcome:     domain.OutcomeOffered,
		OrderID:     o.ID,
		ShipperID:   sh.UserID,
		ShipperName: sh.Name,
		AssignedAt:  now,
		JobID:       job.ID,
		ExpiresAt:   job.RunAt,
	}, nil
}

// ReassignOrder withdraws a pending offer as if its timeout fired and immediately
// runs assignment again. It is a no-op unless the order is currently offered.
func (s *Service) ReassignOrder(ctx context.Context, orderID int64) (domain.ReassignResult, error) {
	if orderID <= 0 {
		return domain.ReassignResult{}, apperr.ErrInvalid
	}
	return s.reassign(ctx, orderID, nil)
}

// HandleTimeout is the fire handler of acceptance timeouts. A job that no longer
// owns the order's offer is ignored, so redelivery and late firing are harmless.
func (s *Service) HandleTimeout(ctx context.Context, job domain.TimeoutJob) error {
	res, err := s.reassign(ctx, job.OrderID, &job.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.metrics.Timeout(domain.OutcomeStale)
		s.logger.Warn("timeout for unknown order", logx.Int64("order_id", job.OrderID), logx.String("job_id", job.ID.String()))
		return nil
	}
	if err != nil {
		return err
	}
	s.metrics.Timeout(res.Outcome)
	return nil
}

func (s *Service) reassign(ctx context.Context, orderID int64, jobID *uuid.UUID) (domain.ReassignResult, error) {
	opCtx, cancel := s.withTimeout(ctx)
	res := domain.ReassignResult{OrderID: orderID}
	err := s.tx.WithTx(opCtx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(opCtx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if o.ShipperStatus != domain.ShipperOffered || o.ShipperID == nil {
			res.Outcome = domain.OutcomeStale
			return nil
		}
		if jobID != nil && (o.ReassignmentJobID == nil || *o.ReassignmentJobID != *jobID) {
			res.Outcome = domain.OutcomeStale
			return nil
		}

		now := s.now()
		prev := *o.ShipperID
		if o.ReassignmentJobID != nil {
			if _, err := s.scheduler.Cancel(opCtx, tx, *o.ReassignmentJobID); err != nil {
				return err
			}
		}
		ok, err := tx.ClearAssignment(opCtx, o.ID, o.Version)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		if _, err := tx.CloseOpenHistory(opCtx, o.ID, prev, domain.ResponseTimeout, now, ""); err != nil {
			return err
		}
		if _, err := tx.RecomputeLoad(opCtx, prev); err != nil {
			return err
		}
		payload := unassignedPayload{OrderCode: o.Code, PreviousShipperID: prev, Reason: "timeout"}
		if err := appendEvent(opCtx, tx, domain.EventUnassigned, domain.SeverityWarning, o.ID, &prev, payload, now); err != nil {
			return err
		}

		res.Reassigned = true
		res.Outcome = domain.OutcomeReassigned
		res.PreviousShipperID = prev
		return nil
	})
	cancel()
	switch {
	case errors.Is(err, errLostRace):
		res = domain.ReassignResult{OrderID: orderID, Outcome: domain.OutcomeStale}
	case err != nil:
		return domain.ReassignResult{}, err
	}

	if !res.Reassigned {
		s.logger.Debug("stale reassignment ignored",
			logx.String("event", "reassign_skipped"),
			logx.Int64("order_id", orderID),
		)
		return res, nil
	}

	s.logger.Info("offer withdrawn",
		logx.String("event", "offer_timed_out"),
		logx.Int64("order_id", orderID),
		logx.Int64("shipper_id", res.PreviousShipperID),
	)

	next, err := s.AssignOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("reassignment failed, order left unassigned",
			logx.Int64("order_id", orderID),
			logx.Err(err),
		)
		return res, nil
	}
	res.Next = next
	return res, nil
}

// ConfirmPickup moves an offer to accepted. Only the shipper holding the current
// offer can confirm; anything else is reported as an outcome, not an error.
func (s *Service) ConfirmPickup(ctx context.Context, orderID, shipperID int64) (domain.ConfirmResult, error) {
	if orderID <= 0 || shipperID <= 0 {
		return domain.ConfirmResult{}, apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res := domain.ConfirmResult{OrderID: orderID, ShipperID: shipperID}
	err := s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		o, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
		}
		if o.ShipperID == nil || o.ShipperStatus != domain.ShipperOffered {
			res.Outcome = domain.OutcomeStale
			return nil
		}
		if *o.ShipperID != shipperID {
			res.Outcome = domain.OutcomeWrongShipper
			return nil
		}

		incremented, err := tx.IncrementActiveOrders(ctx, shipperID)
		if err != nil {
			return err
		}
		if !incremented {
			res.Outcome = domain.OutcomeAtCapacity
			return nil
		}

		now := s.now()
		ok, err := tx.AcceptOffer(ctx, orderID, shipperID, o.Version, now)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}
		if _, err := tx.CloseOpenHistory(ctx, orderID, shipperID, domain.ResponseAccepted, now, ""); err != nil {
			return err
		}
		if o.ReassignmentJobID != nil {
			if _, err := s.scheduler.Cancel(ctx, tx, *o.ReassignmentJobID); err != nil {
				return err
			}
		}

		sh, err := tx.GetShipperForUpdate(ctx, shipperID)
		if err != nil {
			return err
		}
		if sh != nil {
			res.ActiveOrders = sh.CurrentActiveOrders
		}

		payload := confirmedPayload{OrderCode: o.Code, ConfirmedAt: now, ActiveOrders: res.ActiveOrders}
		if err := appendEvent(ctx, tx, domain.EventPickupConfirmed, domain.SeverityInfo, orderID, &shipperID, payload, now); err != nil {
			return err
		}

		res.Confirmed = true
		res.Outcome = domain.OutcomeAccepted
		res.ConfirmedAt = now
		return nil
	})
	switch {
	case errors.Is(err, errLostRace):
		res = domain.ConfirmResult{OrderID: orderID, ShipperID: shipperID, Outcome: domain.OutcomeStale}
	case err != nil:
		return domain.ConfirmResult{}, err
	}

	s.metrics.Confirmation(res.Outcome)
	if res.Confirmed {
		s.logger.Info("pickup confirmed",
			logx.String("event", "pickup_confirmed"),
			logx.Int64("order_id", orderID),
			logx.Int64("shipper_id", shipperID),
			logx.Int("active_orders", res.ActiveOrders),
		)
	} else {
		s.logger.Warn("pickup confirmation rejected",
			logx.String("event", "pickup_rejected"),
			logx.Int64("order_id", orderID),
			logx.Int64("shipper_id", shipperID),
			logx.String("outcome", string(res.Outcome)),
		)
	}
	return res, nil
}

func (s *Service) logAssign(res domain.AssignResult) {
	if res.Assigned {
		s.logger.Info("order offered",
			logx.String("event", "order_offered"),
			logx.Int64("order_id", res.OrderID),
			logx.Int64("shipper_id", res.ShipperID),
			logx.Time("expires_at", res.ExpiresAt),
		)
		return
	}
	fields := []logx.Field{
		logx.String("event", "order_not_offered"),
		logx.Int64("order_id", res.OrderID),
		logx.String("outcome", string(res.Outcome)),
	}
	if res.Outcome == domain.OutcomeNoEligible {
		s.logger.Warn("no eligible shipper, order left unassigned", fields...)
		return
	}
	s.logger.Debug("order not offered", fields...)
}
