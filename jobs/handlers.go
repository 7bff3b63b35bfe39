package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/nileharvest/backoffice/internal/jobs"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/reports"
	"github.com/nileharvest/backoffice/internal/verification"
)

// verificationRetention is how long expired records stay queryable before
// the nightly purge removes them.
const verificationRetention = 90 * 24 * time.Hour

// NewNotificationDeliverHandler delivers one outbox notification. Errors
// propagate so asynq retries with backoff.
func NewNotificationDeliverHandler(svc *notifications.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskNotificationDeliver)
		var payload NotificationDeliverPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		if err := svc.Deliver(ctx, payload.NotificationID); err != nil {
			logger.Warn("notification delivery failed",
				slog.String("id", payload.NotificationID.String()), slog.Any("error", err))
			return tracker.End(err)
		}
		metrics.AddDelivered(1)
		return tracker.End(nil)
	}
}

// NewNotificationSweepHandler re-enqueues pending outbox rows.
func NewNotificationSweepHandler(svc *notifications.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskNotificationSweep)
		count, err := svc.SweepPending(ctx)
		if err != nil {
			return tracker.End(err)
		}
		if count > 0 {
			logger.Info("notification sweep re-enqueued rows", slog.Int("count", count))
		}
		return tracker.End(nil)
	}
}

// NewDailyStatementHandler snapshots a day's cash statement.
func NewDailyStatementHandler(svc *reports.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskDailyStatement)
		var payload DailyStatementPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		date := payload.Date
		if date.IsZero() {
			date = time.Now().AddDate(0, 0, -1)
		}
		statement, err := svc.SnapshotDaily(ctx, date)
		if err != nil {
			logger.Warn("daily statement snapshot failed", slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("daily statement stored",
			slog.String("date", statement.Date.Format("2006-01-02")),
			slog.String("closing", statement.Closing.String()))
		return tracker.End(nil)
	}
}

// NewVerificationCleanupHandler purges long-expired verification records.
func NewVerificationCleanupHandler(svc *verification.Service, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskVerificationCleanup)
		if _, err := svc.CleanupExpired(ctx, verificationRetention); err != nil {
			logger.Warn("verification cleanup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
