package ledger

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

type memRepo struct {
	balance      Balance
	transactions []Transaction
}

func newMemRepo(opening int64) *memRepo {
	return &memRepo{balance: Balance{
		CurrentBalance: decimal.NewFromInt(opening),
		Version:        1,
		LastUpdated:    time.Now(),
		UpdatedBy:      "seed",
	}}
}

func (m *memRepo) Pool() db.Querier { return nil }

func (m *memRepo) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return fn(nil)
}

func (m *memRepo) GetBalance(_ context.Context, _ db.Querier) (Balance, error) {
	return m.balance, nil
}

func (m *memRepo) GetBalanceForUpdate(ctx context.Context, q db.Querier) (Balance, error) {
	return m.GetBalance(ctx, q)
}

func (m *memRepo) UpdateBalance(_ context.Context, _ db.Querier, newBalance decimal.Decimal, expectedVersion int64, actor string) error {
	if m.balance.Version != expectedVersion {
		return ErrConcurrentUpdate
	}
	m.balance.CurrentBalance = newBalance
	m.balance.Version++
	m.balance.LastUpdated = time.Now()
	m.balance.UpdatedBy = actor
	return nil
}

func (m *memRepo) InsertTransaction(_ context.Context, _ db.Querier, t Transaction) (Transaction, error) {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	m.transactions = append(m.transactions, t)
	return t, nil
}

func (m *memRepo) ListTransactions(_ context.Context, _ db.Querier, _ ListFilter) ([]Transaction, error) {
	out := make([]Transaction, len(m.transactions))
	copy(out, m.transactions)
	return out, nil
}

func (m *memRepo) SumConfirmed(_ context.Context, _ db.Querier, before time.Time) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range m.transactions {
		if t.Status != TxStatusConfirmed {
			continue
		}
		if !before.IsZero() && !t.CreatedAt.Before(before) {
			continue
		}
		sum = sum.Add(t.TransactionType.Signed(t.Amount))
	}
	return sum, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordMovesBalanceBySignedAmount(t *testing.T) {
	repo := newMemRepo(500000)
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	deposit, err := svc.Record(ctx, EntryInput{
		Type: TypeDeposit, Amount: decimal.NewFromInt(200000), Reference: "bank transfer", Actor: "grace@nileharvest.co",
	})
	require.NoError(t, err)
	require.True(t, deposit.BalanceAfter.Equal(decimal.NewFromInt(700000)))
	require.Equal(t, TxStatusConfirmed, deposit.Status)

	expense, err := svc.Record(ctx, EntryInput{
		Type: TypeExpense, Amount: decimal.NewFromInt(150000), Reference: "fuel", Actor: "grace@nileharvest.co",
	})
	require.NoError(t, err)
	require.True(t, expense.BalanceAfter.Equal(decimal.NewFromInt(550000)))

	balance, err := svc.CurrentBalance(ctx)
	require.NoError(t, err)
	require.True(t, balance.CurrentBalance.Equal(decimal.NewFromInt(550000)))
	require.Equal(t, int64(3), balance.Version)
	require.Equal(t, "grace@nileharvest.co", balance.UpdatedBy)
}

func TestRecordRejectsBadInput(t *testing.T) {
	repo := newMemRepo(100000)
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	_, err := svc.Record(ctx, EntryInput{Type: TypeDeposit, Amount: decimal.Zero, Actor: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Record(ctx, EntryInput{Type: TypeDeposit, Amount: decimal.NewFromInt(-5), Actor: "x"})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Record(ctx, EntryInput{Type: TransactionType("transfer"), Amount: decimal.NewFromInt(10), Actor: "x"})
	require.ErrorIs(t, err, ErrInvalidType)

	require.Empty(t, repo.transactions)
	require.True(t, repo.balance.CurrentBalance.Equal(decimal.NewFromInt(100000)))
}

func TestStaleVersionIsRejected(t *testing.T) {
	repo := newMemRepo(100000)
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	// A concurrent writer bumps the version after our read.
	stale := repo.balance
	_, err := svc.Record(ctx, EntryInput{Type: TypeDeposit, Amount: decimal.NewFromInt(1000), Actor: "a"})
	require.NoError(t, err)

	err = repo.UpdateBalance(ctx, nil, decimal.NewFromInt(999), stale.Version, "b")
	require.ErrorIs(t, err, ErrConcurrentUpdate)
}

func TestVerifyIntegrity(t *testing.T) {
	repo := newMemRepo(0)
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	_, err := svc.Record(ctx, EntryInput{Type: TypeDeposit, Amount: decimal.NewFromInt(300000), Actor: "a"})
	require.NoError(t, err)
	_, err = svc.Record(ctx, EntryInput{Type: TypeSalary, Amount: decimal.NewFromInt(120000), Actor: "a"})
	require.NoError(t, err)

	report, err := svc.VerifyIntegrity(ctx)
	require.NoError(t, err)
	require.True(t, report.Consistent)
	require.True(t, report.ComputedBalance.Equal(decimal.NewFromInt(180000)))

	// Tamper with the stored balance behind the ledger's back.
	repo.balance.CurrentBalance = repo.balance.CurrentBalance.Add(decimal.NewFromInt(1))
	report, err = svc.VerifyIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Consistent)
}

func TestBalanceAsOf(t *testing.T) {
	repo := newMemRepo(0)
	svc := NewService(repo, nil, testLogger())
	ctx := context.Background()

	_, err := svc.Record(ctx, EntryInput{Type: TypeDeposit, Amount: decimal.NewFromInt(50000), Actor: "a"})
	require.NoError(t, err)
	cutoff := time.Now().Add(time.Second)

	got, err := svc.BalanceAsOf(ctx, cutoff)
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(50000)))
}
