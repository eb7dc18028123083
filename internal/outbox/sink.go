package outbox

import (
	"context"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
)

// Appender stores an event outside a dispatch transaction.
type Appender interface {
	AppendEvent(ctx context.Context, e domain.Event) error
}

// Sink queues sweep notifications. Failures are logged and dropped.
type Sink struct {
	store  Appender
	logger logx.Logger
}

// NewSink creates a Sink
func NewSink(store Appender, logger logx.Logger) *Sink {
	logger = logx.OrNop(logger)
	return &Sink{store: store, logger: logger}
}

// Notify appends e to the outbox.
func (s *Sink) Notify(ctx context.Context, e domain.Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.logger.Warn("notification dropped",
			logx.String("event", string(e.Type)),
			logx.Int64("order_id", e.OrderID),
			logx.Err(err),
		)
	}
}
