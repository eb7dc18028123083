package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/ports/dispatchtx"
	"shipper-dispatch/internal/repository/memory"
	"shipper-dispatch/internal/scheduler"
	"shipper-dispatch/internal/service/dispatch"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock { return &fakeClock{t: day.Add(9 * time.Hour)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	store *memory.Store
	svc   *dispatch.Service
	clock *fakeClock
}

func newEnv(t *testing.T, opts ...dispatch.Option) *env {
	t.Helper()
	store := memory.New()
	clock := newClock()
	opts = append([]dispatch.Option{dispatch.WithClock(clock.Now)}, opts...)
	svc := dispatch.NewService(store, scheduler.New(3*time.Minute), time.Second, logx.Nop(), opts...)
	return &env{store: store, svc: svc, clock: clock}
}

func (e *env) shipper(id int64, maxActive int) {
	e.store.PutShipper(domain.ShipperProfile{
		UserID:          id,
		Name:            "shipper-" + string(rune('A'+id-1)),
		IsWorking:       true,
		MaxActiveOrders: maxActive,
	})
}

func (e *env) order(id int64, lineDays ...int) {
	if len(lineDays) == 0 {
		lineDays = []int{0}
	}
	lines := make([]domain.OrderLine, 0, len(lineDays))
	for i, d := range lineDays {
		lines = append(lines, domain.OrderLine{
			ID:           id*10 + int64(i),
			OrderID:      id,
			DeliveryDate: day.AddDate(0, 0, d),
			Window:       domain.TimeWindow{Start: 14 * time.Hour, End: 16 * time.Hour},
		})
	}
	e.store.PutOrder(domain.Order{ID: id, Code: "ORD-" + string(rune('0'+id)), Status: domain.OrderConfirmed, Lines: lines})
}

func (e *env) mustOrder(t *testing.T, id int64) domain.Order {
	t.Helper()
	o, err := e.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, o)
	return *o
}

func (e *env) mustShipper(t *testing.T, id int64) domain.ShipperProfile {
	t.Helper()
	p, err := e.store.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func (e *env) history(t *testing.T, orderID int64) []domain.AssignmentHistory {
	t.Helper()
	h, err := e.store.ListHistory(context.Background(), orderID)
	require.NoError(t, err)
	return h
}

// fireDue claims every due job and runs the timeout handler on it, like the poller does.
func (e *env) fireDue(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	jobs, err := e.store.ClaimDueJobs(ctx, e.clock.Now(), 30*time.Second, 100)
	require.NoError(t, err)
	for _, j := range jobs {
		require.NoError(t, e.svc.HandleTimeout(ctx, j))
		require.NoError(t, e.store.CompleteJob(ctx, j.ID))
	}
	return len(jobs)
}

func scheduledJobs(jobs []domain.TimeoutJob) []domain.TimeoutJob {
	out := make([]domain.TimeoutJob, 0, len(jobs))
	for _, j := range jobs {
		if j.Status == domain.JobScheduled {
			out = append(out, j)
		}
	}
	return out
}

func countEvents(events []domain.Event, t domain.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// rowLocker records the first time each shipper row is touched inside a transaction.
type rowLocker struct {
	*memory.Store
	mu      sync.Mutex
	touched [][]int64
}

func (r *rowLocker) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	r.mu.Lock()
	r.touched = append(r.touched, nil)
	n := len(r.touched) - 1
	r.mu.Unlock()
	return r.Store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return fn(&lockingTx{Repository: tx, rec: r, n: n})
	})
}

func (r *rowLocker) touch(n int, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, seen := range r.touched[n] {
		if seen == id {
			return
		}
	}
	r.touched[n] = append(r.touched[n], id)
}

func (r *rowLocker) last() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched[len(r.touched)-1]
}

type lockingTx struct {
	dispatchtx.Repository
	rec *rowLocker
	n   int
}

func (t *lockingTx) ListEligibleShippersForUpdate(ctx context.Context) ([]domain.ShipperProfile, error) {
	list, err := t.Repository.ListEligibleShippersForUpdate(ctx)
	for _, sh := range list {
		t.rec.touch(t.n, sh.UserID)
	}
	return list, err
}

func (t *lockingTx) GetShipperForUpdate(ctx context.Context, id int64) (*domain.ShipperProfile, error) {
	t.rec.touch(t.n, id)
	return t.Repository.GetShipperForUpdate(ctx, id)
}

func (t *lockingTx) TouchShipper(ctx context.Context, id int64, at time.Time) error {
	t.rec.touch(t.n, id)
	return t.Repository.TouchShipper(ctx, id, at)
}

func (t *lockingTx) IncrementActiveOrders(ctx context.Context, id int64) (bool, error) {
	t.rec.touch(t.n, id)
	return t.Repository.IncrementActiveOrders(ctx, id)
}

func (t *lockingTx) RecomputeLoad(ctx context.Context, id int64) (int, error) {
	t.rec.touch(t.n, id)
	return t.Repository.RecomputeLoad(ctx, id)
}
