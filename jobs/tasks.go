// Package jobs runs the asynchronous side of the back office: notification
// delivery with retries, the nightly statement snapshot, and housekeeping.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskNotificationDeliver publishes one outbox notification to the
	// change feed and marks it delivered.
	TaskNotificationDeliver = "notification:deliver"
	// TaskNotificationSweep re-enqueues outbox rows whose dispatch was lost.
	TaskNotificationSweep = "notification:sweep"
	// TaskDailyStatement snapshots the previous day's cash statement.
	TaskDailyStatement = "reports:daily_statement"
	// TaskVerificationCleanup purges long-expired verification records.
	TaskVerificationCleanup = "verification:cleanup"
)

// NotificationDeliverPayload identifies the outbox row to deliver.
type NotificationDeliverPayload struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// NewNotificationDeliverTask constructs a delivery task. Failed deliveries
// retry with asynq's default backoff.
func NewNotificationDeliverTask(id uuid.UUID) (*asynq.Task, error) {
	body, err := json.Marshal(NotificationDeliverPayload{NotificationID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDeliver, body, asynq.Queue(QueueDefault), asynq.MaxRetry(10)), nil
}

// NewNotificationSweepTask constructs the periodic sweep task.
func NewNotificationSweepTask() *asynq.Task {
	return asynq.NewTask(TaskNotificationSweep, nil, asynq.Queue(QueueDefault))
}

// DailyStatementPayload carries the day to snapshot. A zero Date means the
// previous calendar day at execution time.
type DailyStatementPayload struct {
	Date time.Time `json:"date"`
}

// NewDailyStatementTask constructs the nightly snapshot task.
func NewDailyStatementTask(date time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(DailyStatementPayload{Date: date})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDailyStatement, body, asynq.Queue(QueueDefault)), nil
}

// NewVerificationCleanupTask constructs the verification purge task.
func NewVerificationCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskVerificationCleanup, nil, asynq.Queue(QueueDefault))
}
