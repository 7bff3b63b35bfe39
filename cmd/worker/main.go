package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nileharvest/backoffice/internal/app"
	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/expenses"
	jobmetrics "github.com/nileharvest/backoffice/internal/jobs"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/payments"
	"github.com/nileharvest/backoffice/internal/platform/cache"
	"github.com/nileharvest/backoffice/internal/platform/db"
	"github.com/nileharvest/backoffice/internal/reports"
	"github.com/nileharvest/backoffice/internal/verification"
	"github.com/nileharvest/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	feed := events.NewPublisher(redisClient, logger)
	metrics := jobmetrics.NewMetrics(nil)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	notificationsRepo := notifications.NewRepository(pool)
	notificationsService := notifications.NewService(notificationsRepo, feed, queueClient, logger)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, feed, logger)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, ledgerService, feed, logger)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, ledgerService, feed, logger)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(ledgerService, expensesService, paymentsService, reportsRepo, logger)

	verificationRepo := verification.NewRepository(pool)
	codeStore := verification.NewCodeStore(redisClient)
	verificationService := verification.NewService(verificationRepo, codeStore, logger)

	statementTask, err := jobs.NewDailyStatementTask(time.Time{})
	if err != nil {
		logger.Error("build statement task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotificationDeliver, Handler: jobs.NewNotificationDeliverHandler(notificationsService, metrics, logger)},
			{Type: jobs.TaskNotificationSweep, Handler: jobs.NewNotificationSweepHandler(notificationsService, metrics, logger)},
			{Type: jobs.TaskDailyStatement, Handler: jobs.NewDailyStatementHandler(reportsService, metrics, logger)},
			{Type: jobs.TaskVerificationCleanup, Handler: jobs.NewVerificationCleanupHandler(verificationService, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "*/5 * * * *", Task: jobs.NewNotificationSweepTask()},
			{Spec: "15 0 * * *", Task: statementTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 2 * * *", Task: jobs.NewVerificationCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
