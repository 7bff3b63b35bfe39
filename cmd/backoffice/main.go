package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/nileharvest/backoffice/internal/app"
	"github.com/nileharvest/backoffice/internal/approvals"
	"github.com/nileharvest/backoffice/internal/auth"
	"github.com/nileharvest/backoffice/internal/employees"
	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/expenses"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/observability"
	"github.com/nileharvest/backoffice/internal/payments"
	"github.com/nileharvest/backoffice/internal/platform/cache"
	"github.com/nileharvest/backoffice/internal/platform/db"
	"github.com/nileharvest/backoffice/internal/rbac"
	"github.com/nileharvest/backoffice/internal/reports"
	"github.com/nileharvest/backoffice/internal/shared"
	"github.com/nileharvest/backoffice/internal/verification"
	"github.com/nileharvest/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()
	feed := events.NewPublisher(redisClient, logger)

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

	employeesRepo := employees.NewRepository(pool)
	employeesService := employees.NewService(employeesRepo)
	rbacMiddleware := rbac.Middleware{Source: employeesService, Logger: logger}
	employeesHandler := employees.NewHandler(logger, employeesService, rbacMiddleware)

	authService := auth.NewService(employeesService, logger)
	authHandler := auth.NewHandler(logger, authService, rbacMiddleware)

	notificationsRepo := notifications.NewRepository(pool)
	notificationsService := notifications.NewService(notificationsRepo, feed, queueClient, logger)
	notificationsHandler := notifications.NewHandler(logger, notificationsService, rbacMiddleware)

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, feed, logger)
	ledgerHandler := ledger.NewHandler(logger, ledgerService, rbacMiddleware)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, ledgerService, feed, logger)
	expensesHandler := expenses.NewHandler(logger, expensesService, rbacMiddleware)

	approvalsRepo := approvals.NewRepository(pool)
	approvalsService := approvals.NewService(approvalsRepo, ledgerService, expensesService, notificationsService, feed, metrics, logger)
	approvalsHandler := approvals.NewHandler(logger, approvalsService, rbacMiddleware)

	paymentsRepo := payments.NewRepository(pool)
	paymentsService := payments.NewService(paymentsRepo, ledgerService, feed, logger)
	paymentsHandler := payments.NewHandler(logger, paymentsService, rbacMiddleware)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(ledgerService, expensesService, paymentsService, reportsRepo, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, rbacMiddleware)

	verificationRepo := verification.NewRepository(pool)
	codeStore := verification.NewCodeStore(redisClient)
	verificationService := verification.NewService(verificationRepo, codeStore, logger)
	verificationHandler := verification.NewHandler(logger, verificationService, rbacMiddleware)

	eventsHandler := events.NewHandler(redisClient, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		Pool:                 pool,
		RBACMiddleware:       rbacMiddleware,
		AuthHandler:          authHandler,
		EmployeesHandler:     employeesHandler,
		ApprovalsHandler:     approvalsHandler,
		LedgerHandler:        ledgerHandler,
		ExpensesHandler:      expensesHandler,
		PaymentsHandler:      paymentsHandler,
		NotificationsHandler: notificationsHandler,
		ReportsHandler:       reportsHandler,
		VerificationHandler:  verificationHandler,
		EventsHandler:        eventsHandler,
		JobHandler:           jobHandler,
		Metrics:              metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
