package verification

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nileharvest/backoffice/internal/platform/httpx"
	"github.com/nileharvest/backoffice/internal/rbac"
)

// Handler exposes the public portal and the authenticated verification
// management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds the verification handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountPublicRoutes registers the unauthenticated lookup endpoint.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/{code}", h.lookup)
}

// MountRoutes registers the authenticated management endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAuthenticated)
	r.Put("/security-questions", h.setSecurityQuestions)
	r.Post("/security-questions/verify", h.verifySecurityAnswers)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireFinance)
		r.Post("/", h.issue)
		r.Post("/{id}/revoke", h.revoke)
		r.Post("/withdrawal-codes", h.createWithdrawalCode)
		r.Post("/withdrawal-codes/{id}/verify", h.verifyWithdrawalCode)
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Lookup(r.Context(), chi.URLParam(r, "code"), clientIP(r), r.UserAgent())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"status":        result.Status,
		"code":          result.Record.Code,
		"kind":          result.Record.Kind,
		"subject_name":  result.Record.SubjectName,
		"details":       result.Record.Details,
		"valid_until":   result.Record.ValidUntil,
		"issued_at":     result.Record.CreatedAt,
	})
}

type issueRequest struct {
	Code         string `json:"code" validate:"required"`
	Kind         string `json:"kind" validate:"required"`
	SubjectName  string `json:"subject_name" validate:"required"`
	SubjectEmail string `json:"subject_email"`
	Details      string `json:"details"`
	ValidUntil   string `json:"valid_until"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req issueRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := IssueInput{
		Code:         req.Code,
		Kind:         req.Kind,
		SubjectName:  req.SubjectName,
		SubjectEmail: req.SubjectEmail,
		Details:      req.Details,
		IssuedBy:     actor.Name,
	}
	if req.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid valid_until date")
			return
		}
		input.ValidUntil = &t
	}
	rec, err := h.service.Issue(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid record id")
		return
	}
	if err := h.service.Revoke(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": StatusRevoked})
}

type securityQuestionsRequest struct {
	Questions []struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	} `json:"questions" validate:"required,min=1,dive"`
}

func (h *Handler) setSecurityQuestions(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req securityQuestionsRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	pairs := make([]QuestionAnswer, 0, len(req.Questions))
	for _, q := range req.Questions {
		pairs = append(pairs, QuestionAnswer{Question: q.Question, Answer: q.Answer})
	}
	if err := h.service.SetSecurityQuestions(r.Context(), actor.Email, pairs); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "saved"})
}

type verifyAnswersRequest struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

func (h *Handler) verifySecurityAnswers(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.ActorFromContext(r.Context())
	var req verifyAnswersRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	answers := make(map[uuid.UUID]string, len(req.Answers))
	for rawID, answer := range req.Answers {
		id, err := uuid.Parse(rawID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid question id")
			return
		}
		answers[id] = answer
	}
	ok, err := h.service.VerifySecurityAnswers(r.Context(), actor.Email, answers)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verified": ok})
}

type withdrawalCodeRequest struct {
	WithdrawalRequestID string `json:"withdrawal_request_id" validate:"required"`
	ApproverEmail       string `json:"approver_email" validate:"required,email"`
	ApproverPhone       string `json:"approver_phone"`
}

func (h *Handler) createWithdrawalCode(w http.ResponseWriter, r *http.Request) {
	var req withdrawalCodeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issue, err := h.service.CreateWithdrawalCode(r.Context(), req.WithdrawalRequestID, req.ApproverEmail, req.ApproverPhone)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issue)
}

type verifyCodeRequest struct {
	Code string `json:"code" validate:"required,len=6"`
}

func (h *Handler) verifyWithdrawalCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := httpx.DecodeValid(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	check, err := h.service.VerifyWithdrawalCode(r.Context(), chi.URLParam(r, "id"), req.Code)
	switch {
	case err == nil,
		errors.Is(err, ErrCodeMismatch),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrTooManyAttempts):
		// The attempt outcome travels in the body, not the status code.
		httpx.JSON(w, http.StatusOK, check)
	default:
		h.respondError(w, err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "verification record not found")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("verification", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// clientIP strips the port from RemoteAddr. The RealIP middleware has
// already substituted the forwarded address when one was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
