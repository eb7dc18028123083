package dispatch

import (
	"context"
	"fmt"
	"time"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
)

// Query serves read-only views of dispatch state.
type Query struct {
	repo             historyRepository
	operationTimeout time.Duration
}

// NewQuery creates a Query.
func NewQuery(repo historyRepository, timeout time.Duration) *Query {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Query{repo: repo, operationTimeout: timeout}
}

// Assignments returns the order with its full offer ledger.
func (q *Query) Assignments(ctx context.Context, orderID int64) (*domain.Order, []domain.AssignmentHistory, error) {
	if orderID <= 0 {
		return nil, nil, apperr.ErrInvalid
	}
	ctx, cancel := context.WithTimeout(ctx, q.operationTimeout)
	defer cancel()

	o, err := q.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o == nil {
		return nil, nil, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	history, err := q.repo.ListHistory(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return o, history, nil
}
