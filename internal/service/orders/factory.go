package orders

import (
	"context"

	"shipper-dispatch/internal/domain"
)

type actionFunc func(context.Context, Event, domain.OrderStatus) error

type actionFactory struct {
	byStatus map[domain.OrderStatus]actionFunc
}

func newActionFactory(onConfirmed, onTerminal actionFunc) *actionFactory {
	return &actionFactory{
		byStatus: map[domain.OrderStatus]actionFunc{
			domain.OrderConfirmed: onConfirmed,
			domain.OrderDelivered: onTerminal,
			domain.OrderCompleted: onTerminal,
			domain.OrderCancelled: onTerminal,
		},
	}
}

func (f *actionFactory) get(status string) (actionFunc, domain.OrderStatus, bool) {
	st, ok := domain.ParseOrderStatus(status)
	if !ok {
		return nil, "", false
	}
	fn, ok := f.byStatus[st]
	return fn, st, ok
}
