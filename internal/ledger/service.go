package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/platform/db"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(q db.Querier) error) error
	Pool() db.Querier
	GetBalance(ctx context.Context, q db.Querier) (Balance, error)
	GetBalanceForUpdate(ctx context.Context, q db.Querier) (Balance, error)
	UpdateBalance(ctx context.Context, q db.Querier, newBalance decimal.Decimal, expectedVersion int64, actor string) error
	InsertTransaction(ctx context.Context, q db.Querier, t Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, q db.Querier, filter ListFilter) ([]Transaction, error)
	SumConfirmed(ctx context.Context, q db.Querier, before time.Time) (decimal.Decimal, error)
}

// Service maintains the cash ledger: an append-only transaction log plus the
// versioned singleton running balance.
type Service struct {
	repo   RepositoryPort
	feed   *events.Publisher
	logger *slog.Logger
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, feed *events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, feed: feed, logger: logger}
}

// EntryInput describes a ledger mutation.
type EntryInput struct {
	Type      TransactionType
	Amount    decimal.Decimal
	Reference string
	Actor     string
}

// Apply appends one ledger entry and moves the balance inside the caller's
// transaction. The balance row is locked for the duration, the version
// column rejects writers that read a stale balance.
func (s *Service) Apply(ctx context.Context, q db.Querier, input EntryInput) (Transaction, error) {
	if !input.Type.Valid() {
		return Transaction{}, ErrInvalidType
	}
	if !input.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}

	balance, err := s.repo.GetBalanceForUpdate(ctx, q)
	if err != nil {
		return Transaction{}, err
	}
	balanceAfter := balance.CurrentBalance.Add(input.Type.Signed(input.Amount))

	entry, err := s.repo.InsertTransaction(ctx, q, Transaction{
		TransactionType: input.Type,
		Amount:          input.Amount,
		BalanceAfter:    balanceAfter,
		Reference:       input.Reference,
		CreatedBy:       input.Actor,
		Status:          TxStatusConfirmed,
	})
	if err != nil {
		return Transaction{}, err
	}

	if err := s.repo.UpdateBalance(ctx, q, balanceAfter, balance.Version, input.Actor); err != nil {
		return Transaction{}, err
	}
	return entry, nil
}

// Record applies a standalone ledger entry in its own transaction and
// broadcasts the change.
func (s *Service) Record(ctx context.Context, input EntryInput) (Transaction, error) {
	var entry Transaction
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		var applyErr error
		entry, applyErr = s.Apply(ctx, q, input)
		return applyErr
	})
	if err != nil {
		return Transaction{}, err
	}
	s.feed.Publish(ctx, "finance_cash_transactions", events.OpInsert, entry)
	s.feed.Publish(ctx, "finance_cash_balance", events.OpUpdate, map[string]any{"current_balance": entry.BalanceAfter})
	return entry, nil
}

// CurrentBalance returns the singleton balance row.
func (s *Service) CurrentBalance(ctx context.Context) (Balance, error) {
	return s.repo.GetBalance(ctx, s.repo.Pool())
}

// Ledger lists confirmed transactions.
func (s *Service) Ledger(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, s.repo.Pool(), filter)
}

// BalanceAsOf computes the balance implied by confirmed transactions created
// before the given instant. Used for opening balances in statements.
func (s *Service) BalanceAsOf(ctx context.Context, at time.Time) (decimal.Decimal, error) {
	return s.repo.SumConfirmed(ctx, s.repo.Pool(), at)
}

// IntegrityReport compares the stored balance against the ledger sum.
type IntegrityReport struct {
	StoredBalance   decimal.Decimal
	ComputedBalance decimal.Decimal
	Consistent      bool
}

// VerifyIntegrity recomputes the balance from the transaction log. A
// mismatch means a historical partial write and warrants investigation.
func (s *Service) VerifyIntegrity(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		balance, err := s.repo.GetBalance(ctx, q)
		if err != nil {
			return err
		}
		computed, err := s.repo.SumConfirmed(ctx, q, time.Time{})
		if err != nil {
			return err
		}
		report = IntegrityReport{
			StoredBalance:   balance.CurrentBalance,
			ComputedBalance: computed,
			Consistent:      balance.CurrentBalance.Equal(computed),
		}
		return nil
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	if !report.Consistent && s.logger != nil {
		s.logger.Error("cash ledger out of balance",
			slog.String("stored", report.StoredBalance.String()),
			slog.String("computed", report.ComputedBalance.String()))
	}
	return report, nil
}
