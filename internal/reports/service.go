package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/ledger"
)

// LedgerSource supplies ledger rows and balances.
type LedgerSource interface {
	Ledger(ctx context.Context, filter ledger.ListFilter) ([]ledger.Transaction, error)
	CurrentBalance(ctx context.Context) (ledger.Balance, error)
	BalanceAsOf(ctx context.Context, at time.Time) (decimal.Decimal, error)
}

// ExpenseSource supplies categorised spend totals.
type ExpenseSource interface {
	CategoryTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
}

// AdvanceSource supplies the outstanding staff-advance balance.
type AdvanceSource interface {
	OutstandingAdvances(ctx context.Context) (decimal.Decimal, error)
}

// SnapshotStore persists nightly daily statements.
type SnapshotStore interface {
	SaveDailySnapshot(ctx context.Context, statement DailyCashStatement) error
	GetDailySnapshot(ctx context.Context, date time.Time) (DailyCashStatement, error)
}

// Service assembles statements from the finance data sources.
type Service struct {
	ledger    LedgerSource
	expenses  ExpenseSource
	advances  AdvanceSource
	snapshots SnapshotStore
	logger    *slog.Logger
}

// NewService constructs the reports service. snapshots may be nil when the
// nightly job is not wired.
func NewService(ledgerSource LedgerSource, expenseSource ExpenseSource, advanceSource AdvanceSource, snapshots SnapshotStore, logger *slog.Logger) *Service {
	return &Service{
		ledger:    ledgerSource,
		expenses:  expenseSource,
		advances:  advanceSource,
		snapshots: snapshots,
		logger:    logger,
	}
}

// IncomeStatement builds the income statement for a period.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	transactions, err := s.ledger.Ledger(ctx, ledger.ListFilter{From: from, To: to})
	if err != nil {
		return IncomeStatement{}, err
	}
	byCategory, err := s.expenses.CategoryTotals(ctx, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(from, to, transactions, byCategory), nil
}

// BalanceSheet builds the current position.
func (s *Service) BalanceSheet(ctx context.Context) (BalanceSheet, error) {
	balance, err := s.ledger.CurrentBalance(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	outstanding, err := s.advances.OutstandingAdvances(ctx)
	if err != nil {
		return BalanceSheet{}, err
	}
	return BuildBalanceSheet(time.Now(), balance.CurrentBalance, outstanding), nil
}

// DailyCashStatement builds the statement for one calendar day.
func (s *Service) DailyCashStatement(ctx context.Context, date time.Time) (DailyCashStatement, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	opening, err := s.ledger.BalanceAsOf(ctx, dayStart)
	if err != nil {
		return DailyCashStatement{}, err
	}
	transactions, err := s.ledger.Ledger(ctx, ledger.ListFilter{From: dayStart, To: dayEnd})
	if err != nil {
		return DailyCashStatement{}, err
	}
	return BuildDailyCashStatement(dayStart, opening, transactions), nil
}

// SnapshotDaily builds and stores the statement for a day. Run nightly for
// the previous day.
func (s *Service) SnapshotDaily(ctx context.Context, date time.Time) (DailyCashStatement, error) {
	statement, err := s.DailyCashStatement(ctx, date)
	if err != nil {
		return DailyCashStatement{}, err
	}
	if s.snapshots != nil {
		if err := s.snapshots.SaveDailySnapshot(ctx, statement); err != nil {
			return DailyCashStatement{}, err
		}
	}
	if s.logger != nil {
		s.logger.Info("daily cash statement snapshot",
			slog.String("date", statement.Date.Format("2006-01-02")),
			slog.String("closing", statement.Closing.String()))
	}
	return statement, nil
}

// StoredDailyStatement loads a previously snapshotted statement.
func (s *Service) StoredDailyStatement(ctx context.Context, date time.Time) (DailyCashStatement, error) {
	if s.snapshots == nil {
		return DailyCashStatement{}, ErrSnapshotNotFound
	}
	return s.snapshots.GetDailySnapshot(ctx, date)
}
