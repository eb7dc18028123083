package orders

import (
	"context"
	"errors"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// Processor turns order lifecycle events into dispatch calls
type Processor struct {
	dispatch DispatchPort
	logger   logx.Logger
	factory  *actionFactory
}

// NewProcessor creates a new orders.Processor
func NewProcessor(d DispatchPort, logger logx.Logger) *Processor {
	logger = logx.OrNop(logger)
	p := &Processor{dispatch: d, logger: logger}
	p.factory = newActionFactory(p.onConfirmed, p.onTerminal)
	return p
}

// Handle processes a single orders.Event. Statuses dispatch does not react to are ignored.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if e.OrderID <= 0 {
		return apperr.ErrInvalid
	}
	fn, status, ok := p.factory.get(e.Status)
	if !ok {
		p.logger.Debug("order event ignored",
			logx.Int64("order_id", e.OrderID),
			logx.String("status", e.Status),
		)
		return nil
	}
	return fn(ctx, e, status)
}

func (p *Processor) onConfirmed(ctx context.Context, e Event, _ domain.OrderStatus) error {
	res, err := p.dispatch.OnOrderConfirmed(ctx, e.OrderID)
	if errors.Is(err, apperr.ErrNotFound) {
		p.logger.Warn("confirmed order not found", logx.Int64("order_id", e.OrderID))
		return nil
	}
	if err != nil {
		return err
	}
	if !res.Assigned && res.Outcome == domain.OutcomeNoEligible {
		p.logger.Warn("confirmed order left unassigned",
			logx.String("event", "order_unassigned"),
			logx.Int64("order_id", e.OrderID),
			logx.String("outcome", string(res.Outcome)),
		)
	}
	return nil
}

func (p *Processor) onTerminal(ctx context.Context, e Event, status domain.OrderStatus) error {
	err := p.dispatch.OnOrderTerminal(ctx, e.OrderID, status)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}
