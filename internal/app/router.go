package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nileharvest/backoffice/internal/approvals"
	"github.com/nileharvest/backoffice/internal/auth"
	"github.com/nileharvest/backoffice/internal/employees"
	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/expenses"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/observability"
	"github.com/nileharvest/backoffice/internal/payments"
	"github.com/nileharvest/backoffice/internal/rbac"
	"github.com/nileharvest/backoffice/internal/reports"
	"github.com/nileharvest/backoffice/internal/shared"
	"github.com/nileharvest/backoffice/internal/verification"
	"github.com/nileharvest/backoffice/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	Pool           *pgxpool.Pool
	RBACMiddleware rbac.Middleware

	AuthHandler          *auth.Handler
	EmployeesHandler     *employees.Handler
	ApprovalsHandler     *approvals.Handler
	LedgerHandler        *ledger.Handler
	ExpensesHandler      *expenses.Handler
	PaymentsHandler      *payments.Handler
	NotificationsHandler *notifications.Handler
	ReportsHandler       *reports.Handler
	VerificationHandler  *verification.Handler
	EventsHandler        *events.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi router with the back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Public verification portal, no session required.
	if params.VerificationHandler != nil {
		r.Route("/verify", params.VerificationHandler.MountPublicRoutes)
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/employees", params.EmployeesHandler.MountRoutes)
	r.Route("/approvals", params.ApprovalsHandler.MountRoutes)
	r.Route("/ledger", params.LedgerHandler.MountRoutes)
	r.Route("/expenses", params.ExpensesHandler.MountRoutes)
	r.Route("/payments", params.PaymentsHandler.MountRoutes)
	r.Route("/notifications", params.NotificationsHandler.MountRoutes)
	r.Route("/reports", params.ReportsHandler.MountRoutes)
	if params.VerificationHandler != nil {
		r.Route("/verification", params.VerificationHandler.MountRoutes)
	}
	if params.EventsHandler != nil {
		r.Route("/events", params.EventsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
