package expenses

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/platform/db"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Pool() db.Querier
	WithTx(ctx context.Context, fn func(q db.Querier) error) error
	Insert(ctx context.Context, q db.Querier, e Expense) (Expense, error)
	Get(ctx context.Context, id uuid.UUID) (Expense, error)
	List(ctx context.Context, filter ListFilter) ([]Expense, error)
	SumByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
}

// LedgerPort posts cash movements for recorded expenses.
type LedgerPort interface {
	Apply(ctx context.Context, q db.Querier, input ledger.EntryInput) (ledger.Transaction, error)
}

// Service records confirmed spend and keeps the cash ledger in step.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	feed   *events.Publisher
	logger *slog.Logger
}

// NewService constructs the expense service.
func NewService(repo RepositoryPort, ledger LedgerPort, feed *events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, feed: feed, logger: logger}
}

// RecordInput describes an expense to record.
type RecordInput struct {
	Category    string
	Description string
	Amount      decimal.Decimal
	ExpenseDate time.Time
	Actor       string
}

// Record writes an expense and its ledger entry in one transaction and
// broadcasts the change. Used for direct recording by finance staff.
func (s *Service) Record(ctx context.Context, input RecordInput) (Expense, error) {
	if strings.TrimSpace(input.Category) == "" || !input.Amount.IsPositive() {
		return Expense{}, ErrValidation
	}
	if input.ExpenseDate.IsZero() {
		input.ExpenseDate = time.Now()
	}

	var recorded Expense
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		var err error
		recorded, err = s.MirrorTx(ctx, q, Expense{
			Category:    input.Category,
			Description: input.Description,
			Amount:      input.Amount,
			ExpenseDate: input.ExpenseDate,
			RecordedBy:  input.Actor,
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Apply(ctx, q, ledger.EntryInput{
			Type:      ledger.TypeExpense,
			Amount:    input.Amount,
			Reference: "Expense: " + input.Category,
			Actor:     input.Actor,
		})
		return err
	})
	if err != nil {
		return Expense{}, err
	}
	s.feed.Publish(ctx, "finance_expenses", events.OpInsert, recorded)
	return recorded, nil
}

// MirrorTx inserts an expense row on the caller's querier without touching
// the ledger. Approval flows call this alongside their own ledger posting.
func (s *Service) MirrorTx(ctx context.Context, q db.Querier, e Expense) (Expense, error) {
	if strings.TrimSpace(e.Category) == "" || !e.Amount.IsPositive() {
		return Expense{}, ErrValidation
	}
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = time.Now()
	}
	return s.repo.Insert(ctx, q, e)
}

// Get fetches one expense.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	return s.repo.Get(ctx, id)
}

// List returns expenses matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	return s.repo.List(ctx, filter)
}

// CategoryTotals aggregates spend per category over a period.
func (s *Service) CategoryTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	return s.repo.SumByCategory(ctx, from, to)
}
