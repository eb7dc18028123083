//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shipper-dispatch/internal/apperr"
	"shipper-dispatch/internal/domain"
	"shipper-dispatch/internal/ports/dispatchtx"
	"shipper-dispatch/internal/repository"
)

type QueueRepositorySuite struct {
	suite.Suite
	tx     *repository.DispatchRepo
	jobs   *repository.JobRepo
	outbox *repository.OutboxRepo
	orders *repository.OrderRepo
}

func (s *QueueRepositorySuite) SetupSuite() {
	s.tx = repository.NewDispatchRepo(tcPool)
	s.jobs = repository.NewJobRepo(tcPool)
	s.outbox = repository.NewOutboxRepo(tcPool)
	s.orders = repository.NewOrderRepo(tcPool)
}

func (s *QueueRepositorySuite) SetupTest() {
	s.Require().NoError(truncateAll(context.Background(), tcPool))
}

func (s *QueueRepositorySuite) insertJob(orderID int64, runAt time.Time) uuid.UUID {
	ctx := context.Background()
	id := uuid.New()
	s.Require().NoError(s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertJob(ctx, domain.TimeoutJob{ID: id, OrderID: orderID, RunAt: runAt, Status: domain.JobScheduled})
	}))
	return id
}

func (s *QueueRepositorySuite) TestClaimDueJobsLeasesAndSettles() {
	ctx := context.Background()
	now := time.Now().UTC()
	due := s.insertJob(1, now.Add(-time.Minute))
	later := s.insertJob(2, now.Add(time.Hour))

	claimed, err := s.jobs.ClaimDueJobs(ctx, now, 30*time.Second, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 1)
	s.Equal(due, claimed[0].ID)
	s.Equal(domain.JobRunning, claimed[0].Status)
	s.Equal(1, claimed[0].Attempts)

	again, err := s.jobs.ClaimDueJobs(ctx, now, 30*time.Second, 10)
	s.Require().NoError(err)
	s.Empty(again, "leased job must not be claimed twice")

	expired, err := s.jobs.ClaimDueJobs(ctx, now.Add(time.Minute), 30*time.Second, 10)
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(2, expired[0].Attempts)

	s.Require().NoError(s.jobs.RetryJob(ctx, due, now.Add(2*time.Minute), "db down"))
	s.Require().NoError(s.jobs.FailJob(ctx, later, "gave up"))
	s.ErrorIs(s.jobs.CompleteJob(ctx, uuid.New()), apperr.ErrNotFound)

	jobs, err := s.jobs.JobsForOrder(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(jobs, 1)
	s.Equal(domain.JobScheduled, jobs[0].Status)

	s.Require().NoError(s.jobs.CompleteJob(ctx, due))
	jobs, err = s.jobs.JobsForOrder(ctx, 1)
	s.Require().NoError(err)
	s.Equal(domain.JobDone, jobs[0].Status)
}

func (s *QueueRepositorySuite) TestOutboxClaimPublishFail() {
	ctx := context.Background()
	now := time.Now().UTC()
	sh := int64(3)

	e1, err := domain.NewEvent(domain.EventAssignmentChanged, domain.SeverityInfo, 1, &sh, map[string]string{"order_code": "A"}, now)
	s.Require().NoError(err)
	e2, err := domain.NewEvent(domain.EventUrgencyEscalation, domain.SeverityCritical, 2, nil, nil, now)
	s.Require().NoError(err)

	s.Require().NoError(s.tx.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.AppendEvent(ctx, e1)
	}))
	s.Require().NoError(s.outbox.AppendEvent(ctx, e2))

	claimed, err := s.outbox.ClaimEvents(ctx, now, time.Minute, 10)
	s.Require().NoError(err)
	s.Require().Len(claimed, 2)
	s.Equal(e1.ID, claimed[0].ID)
	s.Equal(e2.ID, claimed[1].ID)
	s.JSONEq(`{"order_code":"A"}`, string(claimed[0].Payload))
	s.Require().NotNil(claimed[0].ShipperID)
	s.Nil(claimed[1].ShipperID)
	s.Empty(claimed[1].Payload)

	s.Require().NoError(s.outbox.MarkPublished(ctx, e1.ID, now))
	s.Require().NoError(s.outbox.MarkFailed(ctx, e2.ID, 1, false, "broker down"))

	retry, err := s.outbox.ClaimEvents(ctx, now, time.Minute, 10)
	s.Require().NoError(err)
	s.Require().Len(retry, 1)
	s.Equal(e2.ID, retry[0].ID)
	s.Equal(1, retry[0].Attempts)

	s.Require().NoError(s.outbox.MarkFailed(ctx, e2.ID, 2, true, "broker down"))

	st, err := s.outbox.EventStatus(ctx, e1.ID)
	s.Require().NoError(err)
	s.Equal("published", st)
	st, err = s.outbox.EventStatus(ctx, e2.ID)
	s.Require().NoError(err)
	s.Equal("failed", st)

	empty, err := s.outbox.ClaimEvents(ctx, now.Add(time.Hour), time.Minute, 10)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *QueueRepositorySuite) TestCandidateQueries() {
	ctx := context.Background()
	s.Require().NoError(repository.NewShipperRepo(tcPool).Create(ctx,
		&domain.ShipperProfile{UserID: 7, Name: "S", MaxActiveOrders: 2}))

	today := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	insertOrder(s.T(), 1, domain.OrderConfirmed)
	insertLine(s.T(), 1, today, "15:00", "17:00")
	insertLine(s.T(), 1, today, "09:00", "11:00")
	insertOrder(s.T(), 2, domain.OrderConfirmed)
	insertLine(s.T(), 2, tomorrow, "09:00", "11:00")
	insertOrder(s.T(), 3, domain.OrderConfirmed)
	insertLine(s.T(), 3, today, "10:00", "12:00")
	setDispatchState(s.T(), 3, 7, domain.ShipperOffered)
	insertOrder(s.T(), 4, domain.OrderConfirmed)
	insertLine(s.T(), 4, today, "10:00", "12:00")
	setDispatchState(s.T(), 4, 7, domain.ShipperAccepted)
	insertOrder(s.T(), 5, domain.OrderPending)
	insertLine(s.T(), 5, today, "10:00", "12:00")

	pre, err := s.orders.ListPreOrderCandidates(ctx, today)
	s.Require().NoError(err)
	s.Require().Len(pre, 2)
	s.Equal(int64(1), pre[0].OrderID)
	s.Equal(9*time.Hour, pre[0].Window.Start, "earliest window first")
	s.Equal(int64(1), pre[1].OrderID)

	urgent, err := s.orders.ListUrgentCandidates(ctx, today)
	s.Require().NoError(err)
	ids := make([]int64, 0, len(urgent))
	for _, u := range urgent {
		ids = append(ids, u.OrderID)
	}
	s.Equal([]int64{1, 1, 3}, ids)
	s.Equal(domain.ShipperOffered, urgent[2].ShipperStatus)

	next, err := s.orders.ListPreOrderCandidates(ctx, tomorrow)
	s.Require().NoError(err)
	s.Require().Len(next, 1)
	s.Equal(int64(2), next[0].OrderID)
}

func TestQueueRepositorySuite(t *testing.T) {
	suite.Run(t, new(QueueRepositorySuite))
}
