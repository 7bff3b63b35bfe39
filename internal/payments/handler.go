package payments

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/platform/httpx"
	"github.com/nileharvest/backoffice/internal/rbac"
)

// Handler exposes payment and advance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the payments handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers payment routes behind the finance gate.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated)
	r.Use(h.rbac.RequireFinance)
	r.Get("/", h.listPayments)
	r.Post("/", h.recordPayment)
	r.Get("/advances", h.listAdvances)
	r.Post("/advances", h.issueAdvance)
	r.Post("/advances/{id}/recover", h.recoverAdvance)
}

type paymentRequest struct {
	PayeeName    string          `json:"payee_name" validate:"required"`
	PayeeType    string          `json:"payee_type" validate:"required,oneof=supplier farmer"`
	LotReference string          `json:"lot_reference"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req paymentRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := PaymentInput{
		PayeeName:    req.PayeeName,
		PayeeType:    req.PayeeType,
		LotReference: req.LotReference,
		Description:  req.Description,
		Amount:       req.Amount,
		Actor:        actor.Name,
	}
	if req.PaymentDate != "" {
		t, err := time.Parse("2006-01-02", req.PaymentDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payment date")
			return
		}
		input.PaymentDate = t
	}
	recorded, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recorded)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		to = t.AddDate(0, 0, 1)
	}
	list, err := h.service.ListPayments(r.Context(), from, to, 200)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if list == nil {
		list = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payments": list})
}

type advanceRequest struct {
	EmployeeEmail string          `json:"employee_email" validate:"required,email"`
	EmployeeName  string          `json:"employee_name" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

func (h *Handler) issueAdvance(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req advanceRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issued, err := h.service.IssueAdvance(r.Context(), AdvanceInput{
		EmployeeEmail: req.EmployeeEmail,
		EmployeeName:  req.EmployeeName,
		Amount:        req.Amount,
		Reason:        req.Reason,
		Actor:         actor.Name,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issued)
}

func (h *Handler) listAdvances(w http.ResponseWriter, r *http.Request) {
	onlyOutstanding := r.URL.Query().Get("outstanding") == "true"
	list, err := h.service.ListAdvances(r.Context(), onlyOutstanding, 200)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if list == nil {
		list = []Advance{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"advances": list})
}

type recoveryRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) recoverAdvance(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid advance id")
		return
	}
	var req recoveryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.RecoverAdvance(r.Context(), id, req.Amount, actor.Name)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
	case errors.Is(err, ErrValidation), errors.Is(err, ErrOverRecovery), errors.Is(err, ErrAdvanceClosed):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ledger.ErrConcurrentUpdate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "cash balance changed, retry the operation")
	default:
		h.logger.Error("payments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
