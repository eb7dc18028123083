package sweeper

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/logx"
	"shipper-dispatch/internal/repository/memory"
	"shipper-dispatch/internal/scheduler"
	"shipper-dispatch/internal/service/dispatch"
	testlog "shipper-dispatch/internal/testutil"
)

var today = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e domain.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *recordingNotifier) ofType(t domain.EventType) []domain.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingMetrics struct {
	mu     sync.Mutex
	sweeps map[string]int
	urgent int
}

func (m *recordingMetrics) SweepDuration(sweep string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sweeps == nil {
		m.sweeps = map[string]int{}
	}
	m.sweeps[sweep]++
}

func (m *recordingMetrics) UrgentOrders(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urgent = n
}

func line(orderID int64, dayOffset int, start, end time.Duration) domain.OrderLine {
	return domain.OrderLine{
		OrderID:      orderID,
		DeliveryDate: today.AddDate(0, 0, dayOffset),
		Window:       domain.TimeWindow{Start: start, End: end},
	}
}

func at(hh, mm int) time.Time {
	return today.Add(time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute)
}

func TestPreOrderSweeper_AssignsTodayOnlyOnce(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := at(8, 0)
	svc := dispatch.NewService(store, scheduler.New(3*time.Minute), time.Second, logx.Nop(),
		dispatch.WithClock(func() time.Time { return now }))
	store.PutShipper(domain.ShipperProfile{UserID: 1, Name: "Anh", IsWorking: true, MaxActiveOrders: 2})
	store.PutOrder(domain.Order{ID: 1, Code: "PO-1", Status: domain.OrderConfirmed, Lines: []domain.OrderLine{
		line(1, 3, 9*time.Hour, 10*time.Hour),
		line(1, 0, 15*time.Hour, 17*time.Hour),
		line(1, 0, 11*time.Hour, 12*time.Hour),
	}})
	store.PutOrder(domain.Order{ID: 2, Code: "PO-2", Status: domain.OrderConfirmed, Lines: []domain.OrderLine{
		line(2, 1, 9*time.Hour, 10*time.Hour),
	}})

	n := &recordingNotifier{}
	m := &recordingMetrics{}
	sw := NewPreOrderSweeper(store, svc, n, m, time.UTC, nil)
	sw.now = func() time.Time { return now }

	report, err := sw.SweepToday(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.SweepReport{Scanned: 1, Assigned: 1}, report)

	o, err := store.GetOrder(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, domain.ShipperOffered, o.ShipperStatus)

	assigned := n.ofType(domain.EventPreOrderAssigned)
	require.Len(t, assigned, 1)
	require.Equal(t, domain.SeverityInfo, assigned[0].Severity)
	var p preOrderPayload
	require.NoError(t, json.Unmarshal(assigned[0].Payload, &p))
	require.Equal(t, "Anh", p.ShipperName)
	require.Equal(t, "11:00-12:00", p.Window)
	require.Equal(t, "2024-05-01", p.DeliveryDate)

	report, err = sw.SweepToday(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Scanned, "second sweep is a no-op for the assigned order")
	require.Len(t, n.ofType(domain.EventPreOrderAssigned), 1)
	require.Equal(t, 2, m.sweeps[SweepPreOrders])
}

func TestPreOrderSweeper_WarnsWhenNobodyIsEligible(t *testing.T) {
	t.Parallel()

	store := memory.New()
	svc := dispatch.NewService(store, scheduler.New(time.Minute), time.Second, logx.Nop())
	store.PutOrder(domain.Order{ID: 4, Code: "PO-4", Status: domain.OrderConfirmed, Lines: []domain.OrderLine{
		line(4, 0, 10*time.Hour, 11*time.Hour),
	}})

	n := &recordingNotifier{}
	sw := NewPreOrderSweeper(store, svc, n, nil, time.UTC, nil)
	sw.now = func() time.Time { return at(7, 0) }

	report, err := sw.SweepToday(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.SweepReport{Scanned: 1, Skipped: 1}, report)

	warn := n.ofType(domain.EventPreOrderUnassigned)
	require.Len(t, warn, 1)
	require.Equal(t, domain.SeverityWarning, warn[0].Severity)
	require.Nil(t, warn[0].ShipperID)
}

type flakyAssigner struct {
	failFor int64
	calls   []int64
}

func (f *flakyAssigner) AssignOrder(_ context.Context, id int64) (domain.AssignResult, error) {
	f.calls = append(f.calls, id)
	if id == f.failFor {
		return domain.AssignResult{}, errors.New("deadlock detected")
	}
	return domain.AssignResult{Assigned: true, Outcome: domain.OutcomeOffered, OrderID: id, ShipperID: 9, ShipperName: "Bao"}, nil
}

type staticSource struct {
	pre, urgent []domain.DueOrder
	err         error
}

func (s staticSource) ListPreOrderCandidates(context.Context, time.Time) ([]domain.DueOrder, error) {
	return s.pre, s.err
}

func (s staticSource) ListUrgentCandidates(context.Context, time.Time) ([]domain.DueOrder, error) {
	return s.urgent, s.err
}

func TestPreOrderSweeper_IsolatesFailures(t *testing.T) {
	t.Parallel()

	src := staticSource{pre: []domain.DueOrder{
		{OrderID: 1, DeliveryDate: today},
		{OrderID: 2, DeliveryDate: today},
		{OrderID: 2, DeliveryDate: today},
		{OrderID: 3, DeliveryDate: today},
	}}
	a := &flakyAssigner{failFor: 2}
	rec := testlog.New()
	sw := NewPreOrderSweeper(src, a, &recordingNotifier{}, nil, time.UTC, rec.Logger())

	report, err := sw.SweepToday(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, a.calls)
	require.Equal(t, domain.SweepReport{Scanned: 3, Assigned: 2, Failed: 1}, report)
	require.True(t, rec.HasMsg("pre-order assignment failed"))
}

func TestPreOrderSweeper_SourceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	sw := NewPreOrderSweeper(staticSource{err: boom}, &flakyAssigner{}, &recordingNotifier{}, nil, nil, nil)
	_, err := sw.SweepToday(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestUrgencyMonitor_EscalatesWithinThreshold(t *testing.T) {
	t.Parallel()

	offered := int64(5)
	src := staticSource{urgent: []domain.DueOrder{
		// starts in 45 minutes, unassigned
		{OrderID: 1, Code: "U-1", DeliveryDate: today, Window: domain.TimeWindow{Start: 10*time.Hour + 45*time.Minute, End: 12 * time.Hour}},
		// starts in 2 hours
		{OrderID: 2, Code: "U-2", DeliveryDate: today, Window: domain.TimeWindow{Start: 12 * time.Hour, End: 13 * time.Hour}},
		// already started, still open, offered but not confirmed
		{OrderID: 3, Code: "U-3", ShipperID: &offered, ShipperStatus: domain.ShipperOffered, DeliveryDate: today,
			Window: domain.TimeWindow{Start: 9 * time.Hour, End: 11 * time.Hour}},
		// closed window
		{OrderID: 4, Code: "U-4", DeliveryDate: today, Window: domain.TimeWindow{Start: 8 * time.Hour, End: 9 * time.Hour}},
		// exactly at the threshold
		{OrderID: 5, Code: "U-5", DeliveryDate: today, Window: domain.TimeWindow{Start: 11 * time.Hour, End: 12 * time.Hour}},
		// second line of order 1 must not produce a second alert
		{OrderID: 1, Code: "U-1", DeliveryDate: today, Window: domain.TimeWindow{Start: 10*time.Hour + 50*time.Minute, End: 12 * time.Hour}},
	}}
	n := &recordingNotifier{}
	m := &recordingMetrics{}
	u := NewUrgencyMonitor(src, n, m, time.Hour, time.UTC, nil)
	u.now = func() time.Time { return at(10, 0) }

	report, err := u.SweepUrgent(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.UrgencyReport{Scanned: 5, Escalated: 3}, report)
	require.Equal(t, 3, m.urgent)
	require.Equal(t, 1, m.sweeps[SweepUrgent])

	events := n.ofType(domain.EventUrgencyEscalation)
	require.Len(t, events, 3)
	byOrder := map[int64]urgencyPayload{}
	for _, e := range events {
		assert.Equal(t, domain.SeverityCritical, e.Severity)
		var p urgencyPayload
		require.NoError(t, json.Unmarshal(e.Payload, &p))
		byOrder[e.OrderID] = p
	}
	require.Equal(t, 45, byOrder[1].MinutesRemaining)
	require.Equal(t, "unassigned", byOrder[1].DispatchState)
	require.Equal(t, -60, byOrder[3].MinutesRemaining)
	require.Equal(t, "offered", byOrder[3].DispatchState)
	require.Equal(t, 60, byOrder[5].MinutesRemaining)
}

func TestUrgencyMonitor_ReadOnlyAgainstStore(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.PutShipper(domain.ShipperProfile{UserID: 1, IsWorking: true, MaxActiveOrders: 1})
	accepted := int64(1)
	store.PutOrder(domain.Order{ID: 1, Status: domain.OrderConfirmed, ShipperID: &accepted, ShipperStatus: domain.ShipperAccepted,
		Lines: []domain.OrderLine{line(1, 0, 10*time.Hour, 11*time.Hour)}})
	store.PutOrder(domain.Order{ID: 2, Status: domain.OrderConfirmed,
		Lines: []domain.OrderLine{line(2, 0, 10*time.Hour, 11*time.Hour)}})
	store.PutOrder(domain.Order{ID: 3, Status: domain.OrderConfirmed,
		Lines: []domain.OrderLine{line(3, 1, 10*time.Hour, 11*time.Hour)}})

	n := &recordingNotifier{}
	u := NewUrgencyMonitor(store, n, nil, 0, time.UTC, nil)
	u.now = func() time.Time { return at(9, 30) }

	before, _ := store.GetOrder(context.Background(), 2)
	report, err := u.SweepUrgent(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Escalated)
	require.Equal(t, int64(2), n.events[0].OrderID)

	after, _ := store.GetOrder(context.Background(), 2)
	require.Equal(t, before, after)
	require.Empty(t, store.Events(), "monitor publishes only through the notifier")
}

func TestUrgencyMonitor_UsesLocalCalendar(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ICT", 7*3600)
	src := staticSource{urgent: []domain.DueOrder{
		{OrderID: 1, DeliveryDate: today, Window: domain.TimeWindow{Start: 8 * time.Hour, End: 9 * time.Hour}},
	}}
	n := &recordingNotifier{}
	u := NewUrgencyMonitor(src, n, nil, time.Hour, loc, nil)
	// 07:30 local is 00:30 UTC
	u.now = func() time.Time { return time.Date(2024, 5, 1, 0, 30, 0, 0, time.UTC) }

	report, err := u.SweepUrgent(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Escalated)
	var p urgencyPayload
	require.NoError(t, json.Unmarshal(n.events[0].Payload, &p))
	require.Equal(t, 30, p.MinutesRemaining)
}

func TestSweeps_LocalDeliveryDay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		loc  *time.Location
		// 2024-05-01 local wall clock whose UTC date is a different day
		hour int
	}{
		{name: "west of utc", loc: time.FixedZone("EDT", -4*3600), hour: 21},
		{name: "east of utc", loc: time.FixedZone("ICT", 7*3600), hour: 6},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			now := time.Date(2024, 5, 1, tc.hour, 30, 0, 0, tc.loc)
			require.NotEqual(t, now.Day(), now.UTC().Day())
			start := time.Duration(tc.hour+1) * time.Hour
			window := func(id int64, offset int) []domain.OrderLine {
				return []domain.OrderLine{line(id, offset, start, start+time.Hour)}
			}

			store := memory.New()
			store.PutShipper(domain.ShipperProfile{UserID: 1, Name: "Binh", IsWorking: true, MaxActiveOrders: 3})
			store.PutOrder(domain.Order{ID: 1, Code: "D-1", Status: domain.OrderConfirmed, Lines: window(1, 0)})
			store.PutOrder(domain.Order{ID: 2, Code: "D-2", Status: domain.OrderConfirmed, Lines: window(2, 1)})
			store.PutOrder(domain.Order{ID: 3, Code: "D-3", Status: domain.OrderConfirmed, Lines: window(3, -1)})
			svc := dispatch.NewService(store, scheduler.New(3*time.Minute), time.Second, logx.Nop(),
				dispatch.WithLocation(tc.loc), dispatch.WithClock(func() time.Time { return now }))

			n := &recordingNotifier{}
			sw := NewPreOrderSweeper(store, svc, n, nil, tc.loc, nil)
			sw.now = func() time.Time { return now }
			report, err := sw.SweepToday(context.Background())
			require.NoError(t, err)
			require.Equal(t, domain.SweepReport{Scanned: 1, Assigned: 1}, report)

			assigned := n.ofType(domain.EventPreOrderAssigned)
			require.Len(t, assigned, 1)
			require.Equal(t, int64(1), assigned[0].OrderID)
			var p preOrderPayload
			require.NoError(t, json.Unmarshal(assigned[0].Payload, &p))
			require.Equal(t, "2024-05-01", p.DeliveryDate)

			u := NewUrgencyMonitor(store, n, nil, time.Hour, tc.loc, nil)
			u.now = func() time.Time { return now }
			urgent, err := u.SweepUrgent(context.Background())
			require.NoError(t, err)
			require.Equal(t, domain.UrgencyReport{Scanned: 1, Escalated: 1}, urgent)

			escalations := n.ofType(domain.EventUrgencyEscalation)
			require.Len(t, escalations, 1)
			require.Equal(t, int64(1), escalations[0].OrderID)
			var up urgencyPayload
			require.NoError(t, json.Unmarshal(escalations[0].Payload, &up))
			require.Equal(t, 30, up.MinutesRemaining)
			require.Equal(t, "offered", up.DispatchState)
		})
	}
}
