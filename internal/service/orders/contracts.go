//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"shipper-dispatch/internal/domain"
)

// DispatchPort abstracts the dispatch operations triggered by order lifecycle events.
type DispatchPort interface {
	OnOrderConfirmed(ctx context.Context, orderID int64) (domain.AssignResult, error)
	OnOrderTerminal(ctx context.Context, orderID int64, status domain.OrderStatus) error
}
