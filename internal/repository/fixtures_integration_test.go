//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shipper-dispatch/internal/domain"
)

// insertOrder stores an order the way order management would.
func insertOrder(t *testing.T, id int64, status domain.OrderStatus) {
	t.Helper()
	_, err := tcPool.Exec(context.Background(),
		`INSERT INTO orders (id, code, status) VALUES ($1, $2, $3)`,
		id, "ORD-"+time.Now().Format("150405.000000"), string(status))
	require.NoError(t, err)
}

func insertLine(t *testing.T, orderID int64, day time.Time, start, end string) {
	t.Helper()
	_, err := tcPool.Exec(context.Background(), `
		INSERT INTO order_lines (order_id, delivery_date, window_start, window_end)
		VALUES ($1, $2::date, $3::time, $4::time)
	`, orderID, day.Format(time.DateOnly), start, end)
	require.NoError(t, err)
}

func setDispatchState(t *testing.T, orderID, shipperID int64, st domain.ShipperStatus) {
	t.Helper()
	_, err := tcPool.Exec(context.Background(),
		`UPDATE orders SET shipper_id = $2, shipper_status = $3 WHERE id = $1`,
		orderID, shipperID, string(st))
	require.NoError(t, err)
}

func setOrderStatus(t *testing.T, orderID int64, st domain.OrderStatus) {
	t.Helper()
	_, err := tcPool.Exec(context.Background(),
		`UPDATE orders SET status = $2 WHERE id = $1`, orderID, string(st))
	require.NoError(t, err)
}
