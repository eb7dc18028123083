package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the state of a delayed timeout job.
type JobStatus string

// List of job statuses.
const (
	JobScheduled JobStatus = "scheduled"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// TimeoutJob is a one-shot "reassign if still not accepted" action.
type TimeoutJob struct {
	ID       uuid.UUID
	OrderID  int64
	RunAt    time.Time
	Status   JobStatus
	Attempts int
}
