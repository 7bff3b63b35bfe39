package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/platform/httpx"
	"github.com/nileharvest/backoffice/internal/rbac"
)

// Handler exposes cash ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers ledger routes. All routes require the finance
// capability.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated)
	r.Use(h.rbac.RequireFinance)
	r.Get("/balance", h.balance)
	r.Get("/transactions", h.transactions)
	r.Get("/integrity", h.integrity)
	r.Post("/deposits", h.deposit)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.CurrentBalance(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"current_balance": balance.CurrentBalance,
		"last_updated":    balance.LastUpdated,
		"updated_by":      balance.UpdatedBy,
	})
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 200}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.AddDate(0, 0, 1)
	}
	if tt := r.URL.Query().Get("type"); tt != "" {
		filter.Type = TransactionType(tt)
	}
	list, err := h.service.Ledger(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if list == nil {
		list = []Transaction{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": list})
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyIntegrity(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stored_balance":   report.StoredBalance,
		"computed_balance": report.ComputedBalance,
		"consistent":       report.Consistent,
	})
}

type depositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req depositRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.Record(r.Context(), EntryInput{
		Type:      TypeDeposit,
		Amount:    req.Amount,
		Reference: req.Reference,
		Actor:     actor.Name,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "ledger record not found")
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConcurrentUpdate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "cash balance changed, retry the operation")
	default:
		h.logger.Error("ledger", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
