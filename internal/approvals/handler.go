package approvals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/platform/httpx"
	"github.com/nileharvest/backoffice/internal/rbac"
)

// Handler exposes the approval workflow endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the approvals handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers approval routes. Transition endpoints re-check the
// actor's role in the service; the middleware only demands a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.create)
	r.Post("/{id}/admin-approve", h.adminApprove)
	r.Post("/{id}/finance-approve", h.financeApprove)
	r.Post("/{id}/reject", h.reject)
}

// requestResponse augments the stored request with its derived stage.
type requestResponse struct {
	Request
	Stage Stage `json:"stage"`
}

func present(req Request) requestResponse {
	return requestResponse{Request: req, Stage: Derive(req)}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:      r.URL.Query().Get("status"),
		Department:  r.URL.Query().Get("department"),
		RequestedBy: r.URL.Query().Get("requested_by"),
		Limit:       200,
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]requestResponse, 0, len(list))
	for _, req := range list {
		out = append(out, present(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(req))
}

type createRequest struct {
	Type        string          `json:"type" validate:"required"`
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Department  string          `json:"department"`
	Priority    string          `json:"priority"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req createRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Create(r.Context(), CreateInput{
		Type:        req.Type,
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Department:  req.Department,
		RequestedBy: actor.Email,
		Priority:    req.Priority,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, present(created))
}

func (h *Handler) adminApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor rbac.Actor) (Request, error) {
		return h.service.AdminApprove(r.Context(), id, actor)
	})
}

func (h *Handler) financeApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID, actor rbac.Actor) (Request, error) {
		return h.service.FinanceApprove(r.Context(), id, actor)
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return
	}
	var req rejectRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}
	updated, err := h.service.Reject(r.Context(), id, actor, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(updated))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(uuid.UUID, rbac.Actor) (Request, error)) {
	actor, _ := rbac.ActorFromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return
	}
	updated, err := fn(id, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, present(updated))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "approval request not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", "the request is not in a state that allows this transition")
	case errors.Is(err, ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role does not allow this transition")
	case errors.Is(err, ledger.ErrConcurrentUpdate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "cash balance changed, retry the operation")
	default:
		h.logger.Error("approvals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
