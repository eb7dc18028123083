package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/service/orders"
	"shipper-dispatch/internal/transport/kafka"
)

type spyHandler struct {
	called int
	event  orders.Event
	err    error
}

func (s *spyHandler) Handle(_ context.Context, e orders.Event) error {
	s.called++
	s.event = e
	return s.err
}

func TestHandleOrderEvents_PassesEventThrough(t *testing.T) {
	t.Parallel()

	spy := &spyHandler{}
	h := handleOrderEvents(spy)

	ev := orders.Event{OrderID: 7, Status: "confirmed"}
	require.NoError(t, h(context.Background(), ev))
	require.Equal(t, 1, spy.called)
	require.Equal(t, ev, spy.event)
}

func TestHandleOrderEvents_InvalidIsPermanent(t *testing.T) {
	t.Parallel()

	spy := &spyHandler{err: fmt.Errorf("order 0: %w", apperr.ErrInvalid)}
	err := handleOrderEvents(spy)(context.Background(), orders.Event{})

	var perm kafka.PermanentError
	require.True(t, errors.As(err, &perm))
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestHandleOrderEvents_TransientIsRetried(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("db down")
	spy := &spyHandler{err: sentinel}
	err := handleOrderEvents(spy)(context.Background(), orders.Event{OrderID: 1})

	var perm kafka.PermanentError
	require.False(t, errors.As(err, &perm))
	require.ErrorIs(t, err, sentinel)
}

func TestMakeOrdersKafka_RejectsEmptyOrderID(t *testing.T) {
	t.Parallel()

	h := makeOrdersKafka(orders.NewProcessor(nil, nil))
	err := h(context.Background(), orders.Event{OrderID: 0, Status: "confirmed"})

	var perm kafka.PermanentError
	require.True(t, errors.As(err, &perm))
}
