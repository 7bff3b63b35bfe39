package approvals

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/expenses"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/observability"
	"github.com/nileharvest/backoffice/internal/platform/db"
	"github.com/nileharvest/backoffice/internal/rbac"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Pool() db.Querier
	WithTx(ctx context.Context, fn func(q db.Querier) error) error
	Create(ctx context.Context, q db.Querier, req Request) (Request, error)
	Get(ctx context.Context, q db.Querier, id uuid.UUID) (Request, error)
	GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (Request, error)
	List(ctx context.Context, filter ListFilter) ([]Request, error)
	SetAdminApproval(ctx context.Context, q db.Querier, id uuid.UUID, approver string, at time.Time) error
	SetFinanceApproval(ctx context.Context, q db.Querier, id uuid.UUID, approver string, at time.Time) error
	SetRejected(ctx context.Context, q db.Querier, id uuid.UUID, reason string) error
}

// LedgerPort posts the cash movement of a finance approval.
type LedgerPort interface {
	Apply(ctx context.Context, q db.Querier, input ledger.EntryInput) (ledger.Transaction, error)
}

// ExpensePort mirrors approved amounts into the expense records.
type ExpensePort interface {
	MirrorTx(ctx context.Context, q db.Querier, e expenses.Expense) (expenses.Expense, error)
}

// NotifierPort writes outbox notifications inside the transition transaction
// and dispatches them after commit.
type NotifierPort interface {
	EnqueueTx(ctx context.Context, q db.Querier, input notifications.NewNotification) (notifications.Notification, error)
	Dispatch(ctx context.Context, ids ...uuid.UUID)
}

// Service drives the two-stage approval workflow. Every transition runs in
// one database transaction together with its side effects, so a request can
// never be marked approved while its ledger entry, expense mirror, or
// notification row is missing.
type Service struct {
	repo     RepositoryPort
	ledger   LedgerPort
	expenses ExpensePort
	notifier NotifierPort
	feed     *events.Publisher
	metrics  *observability.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the approval service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, expensePort ExpensePort, notifier NotifierPort, feed *events.Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		ledger:   ledgerPort,
		expenses: expensePort,
		notifier: notifier,
		feed:     feed,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateInput describes a new approval request.
type CreateInput struct {
	Type        string
	Title       string
	Description string
	Amount      decimal.Decimal
	Department  string
	RequestedBy string
	Priority    string
}

// Create submits a new request in the Pending Admin stage.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	if strings.TrimSpace(input.Type) == "" || strings.TrimSpace(input.Title) == "" ||
		strings.TrimSpace(input.RequestedBy) == "" || !input.Amount.IsPositive() {
		return Request{}, ErrValidation
	}
	if input.Priority == "" {
		input.Priority = notifications.PriorityMedium
	}

	var created Request
	var note notifications.Notification
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		var err error
		created, err = s.repo.Create(ctx, q, Request{
			Type:        input.Type,
			Title:       input.Title,
			Description: input.Description,
			Amount:      input.Amount,
			Department:  input.Department,
			RequestedBy: input.RequestedBy,
			Priority:    input.Priority,
		})
		if err != nil {
			return err
		}
		note, err = s.notifier.EnqueueTx(ctx, q, notifications.NewNotification{
			Type:        "approval_request",
			Title:       "New approval request",
			Message:     input.Title + " (" + input.Type + ") awaits admin approval",
			Priority:    notifications.PriorityMedium,
			SenderEmail: input.RequestedBy,
			Metadata:    map[string]any{"request_id": created.ID.String()},
		})
		return err
	})
	if err != nil {
		return Request{}, err
	}

	s.notifier.Dispatch(ctx, note.ID)
	s.feed.Publish(ctx, "approval_requests", events.OpInsert, created)
	return created, nil
}

// AdminApprove performs the admin stage sign-off. The request must be in the
// Pending Admin stage and the actor must hold an admin approver role.
func (s *Service) AdminApprove(ctx context.Context, id uuid.UUID, actor rbac.Actor) (Request, error) {
	if !rbac.CanAdminApprove(actor) {
		s.observe("admin_approve", "forbidden")
		return Request{}, ErrForbidden
	}

	var updated Request
	var note notifications.Notification
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		req, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if stage := Derive(req); stage != StagePendingAdmin {
			return ErrInvalidState
		}
		if err := s.repo.SetAdminApproval(ctx, q, id, actor.Name, s.now()); err != nil {
			return err
		}
		note, err = s.notifier.EnqueueTx(ctx, q, notifications.NewNotification{
			Type:            "approval_progress",
			Title:           "Request approved by admin",
			Message:         req.Title + " moved to finance approval",
			Priority:        notifications.PriorityMedium,
			TargetUserEmail: req.RequestedBy,
			SenderEmail:     actor.Email,
			Metadata:        map[string]any{"request_id": id.String()},
		})
		if err != nil {
			return err
		}
		updated, err = s.repo.Get(ctx, q, id)
		return err
	})
	if err != nil {
		s.observe("admin_approve", outcomeFor(err))
		return Request{}, err
	}

	s.observe("admin_approve", "ok")
	s.notifier.Dispatch(ctx, note.ID)
	s.feed.Publish(ctx, "approval_requests", events.OpUpdate, updated)
	return updated, nil
}

// FinanceApprove performs the final sign-off. In one transaction the request
// is marked approved, the disbursement hits the cash ledger, the expense
// mirror row is written, and the requester's notification is queued. If any
// step fails the whole approval rolls back.
func (s *Service) FinanceApprove(ctx context.Context, id uuid.UUID, actor rbac.Actor) (Request, error) {
	if !rbac.HasFinanceCapability(actor) {
		s.observe("finance_approve", "forbidden")
		return Request{}, ErrForbidden
	}

	var updated Request
	var entry ledger.Transaction
	var note notifications.Notification
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		req, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if stage := Derive(req); stage != StagePendingFinance {
			return ErrInvalidState
		}
		if err := s.repo.SetFinanceApproval(ctx, q, id, actor.Name, s.now()); err != nil {
			return err
		}

		// The ledger reference is the request id, so entries stay traceable
		// to the request that produced them.
		entry, err = s.ledger.Apply(ctx, q, ledger.EntryInput{
			Type:      ledgerTypeFor(req.Type),
			Amount:    req.Amount,
			Reference: req.ID.String(),
			Actor:     actor.Name,
		})
		if err != nil {
			return err
		}

		if _, err := s.expenses.MirrorTx(ctx, q, expenses.Expense{
			Category:        req.Type,
			Description:     req.Title,
			Amount:          req.Amount,
			ExpenseDate:     s.now(),
			RecordedBy:      actor.Name,
			SourceRequestID: &req.ID,
		}); err != nil {
			return err
		}

		note, err = s.notifier.EnqueueTx(ctx, q, notifications.NewNotification{
			Type:            "approval_complete",
			Title:           "Request fully approved",
			Message:         req.Title + " has been approved and disbursed",
			Priority:        notifications.PriorityMedium,
			TargetUserEmail: req.RequestedBy,
			SenderEmail:     actor.Email,
			Metadata:        map[string]any{"request_id": id.String()},
		})
		if err != nil {
			return err
		}
		updated, err = s.repo.Get(ctx, q, id)
		return err
	})
	if err != nil {
		s.observe("finance_approve", outcomeFor(err))
		return Request{}, err
	}

	s.observe("finance_approve", "ok")
	s.notifier.Dispatch(ctx, note.ID)
	s.feed.Publish(ctx, "approval_requests", events.OpUpdate, updated)
	s.feed.Publish(ctx, "finance_cash_transactions", events.OpInsert, entry)
	s.feed.Publish(ctx, "finance_cash_balance", events.OpUpdate, map[string]any{"current_balance": entry.BalanceAfter})
	return updated, nil
}

// Reject declines a request from either pending stage. Rejection is
// terminal; later approval attempts fail the stage precondition.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor rbac.Actor, reason string) (Request, error) {
	if !rbac.CanAdminApprove(actor) && !rbac.HasFinanceCapability(actor) {
		s.observe("reject", "forbidden")
		return Request{}, ErrForbidden
	}

	var updated Request
	var note notifications.Notification
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		req, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if stage := Derive(req); stage != StagePendingAdmin && stage != StagePendingFinance {
			return ErrInvalidState
		}
		if err := s.repo.SetRejected(ctx, q, id, reason); err != nil {
			return err
		}
		message := req.Title + " was rejected"
		if strings.TrimSpace(reason) != "" {
			message += ": " + reason
		}
		note, err = s.notifier.EnqueueTx(ctx, q, notifications.NewNotification{
			Type:            "approval_rejected",
			Title:           "Request rejected",
			Message:         message,
			Priority:        notifications.PriorityHigh,
			TargetUserEmail: req.RequestedBy,
			SenderEmail:     actor.Email,
			Metadata:        map[string]any{"request_id": id.String()},
		})
		if err != nil {
			return err
		}
		updated, err = s.repo.Get(ctx, q, id)
		return err
	})
	if err != nil {
		s.observe("reject", outcomeFor(err))
		return Request{}, err
	}

	s.observe("reject", "ok")
	s.notifier.Dispatch(ctx, note.ID)
	s.feed.Publish(ctx, "approval_requests", events.OpUpdate, updated)
	return updated, nil
}

// Get fetches one request.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.repo.Get(ctx, s.repo.Pool(), id)
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) observe(action, outcome string) {
	s.metrics.ObserveApproval(action, outcome)
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// ledgerTypeFor maps request types to ledger entry types. Salary requests
// post as salary payments, everything else as a plain expense.
func ledgerTypeFor(requestType string) ledger.TransactionType {
	if strings.EqualFold(requestType, TypeSalaryRequest) {
		return ledger.TypeSalary
	}
	return ledger.TypeExpense
}
