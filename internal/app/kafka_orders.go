package app

import (
	"context"
	"errors"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/service/orders"
	"shipper-dispatch/internal/transport/kafka"
)

type orderEventHandler interface {
	Handle(ctx context.Context, e orders.Event) error
}

// makeOrdersKafka adapts the lifecycle processor to the consumer. Invalid
// events can never succeed, so they are skipped instead of redelivered.
func makeOrdersKafka(p *orders.Processor) kafka.HandleFunc {
	return handleOrderEvents(p)
}

func handleOrderEvents(h orderEventHandler) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		err := h.Handle(ctx, event)
		if errors.Is(err, apperr.ErrInvalid) {
			return kafka.Permanent(err)
		}
		return err
	}
}
