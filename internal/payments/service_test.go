package payments

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/platform/db"
)

type memRepo struct {
	payments []Payment
	advances map[uuid.UUID]*Advance
}

func newMemRepo() *memRepo {
	return &memRepo{advances: map[uuid.UUID]*Advance{}}
}

func (m *memRepo) Pool() db.Querier { return nil }

func (m *memRepo) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return fn(nil)
}

func (m *memRepo) InsertPayment(_ context.Context, _ db.Querier, p Payment) (Payment, error) {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	m.payments = append(m.payments, p)
	return p, nil
}

func (m *memRepo) ListPayments(_ context.Context, _, _ time.Time, _ int) ([]Payment, error) {
	return m.payments, nil
}

func (m *memRepo) InsertAdvance(_ context.Context, _ db.Querier, a Advance) (Advance, error) {
	a.ID = uuid.New()
	a.Status = AdvanceOutstanding
	a.AmountRecovered = decimal.Zero
	a.IssuedAt = time.Now()
	m.advances[a.ID] = &a
	return a, nil
}

func (m *memRepo) GetAdvance(_ context.Context, id uuid.UUID) (Advance, error) {
	a, ok := m.advances[id]
	if !ok {
		return Advance{}, ErrNotFound
	}
	return *a, nil
}

func (m *memRepo) GetAdvanceForUpdate(ctx context.Context, _ db.Querier, id uuid.UUID) (Advance, error) {
	return m.GetAdvance(ctx, id)
}

func (m *memRepo) UpdateAdvanceRecovery(_ context.Context, _ db.Querier, id uuid.UUID, recovered decimal.Decimal, status string) error {
	a, ok := m.advances[id]
	if !ok {
		return ErrNotFound
	}
	a.AmountRecovered = recovered
	a.Status = status
	return nil
}

func (m *memRepo) ListAdvances(_ context.Context, onlyOutstanding bool, _ int) ([]Advance, error) {
	var out []Advance
	for _, a := range m.advances {
		if onlyOutstanding && a.Status != AdvanceOutstanding {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) SumOutstandingAdvances(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, a := range m.advances {
		if a.Status == AdvanceOutstanding {
			total = total.Add(a.Outstanding())
		}
	}
	return total, nil
}

type memLedger struct {
	balance decimal.Decimal
	entries []ledger.Transaction
}

func (m *memLedger) Apply(_ context.Context, _ db.Querier, input ledger.EntryInput) (ledger.Transaction, error) {
	if !input.Amount.IsPositive() {
		return ledger.Transaction{}, ledger.ErrInvalidAmount
	}
	m.balance = m.balance.Add(input.Type.Signed(input.Amount))
	entry := ledger.Transaction{
		ID:              uuid.New(),
		TransactionType: input.Type,
		Amount:          input.Amount,
		BalanceAfter:    m.balance,
		Reference:       input.Reference,
		CreatedBy:       input.Actor,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func newService(opening int64) (*Service, *memRepo, *memLedger) {
	repo := newMemRepo()
	led := &memLedger{balance: decimal.NewFromInt(opening)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, led, nil, logger), repo, led
}

func TestRecordPaymentPostsLedgerDebit(t *testing.T) {
	svc, _, led := newService(500000)

	p, err := svc.RecordPayment(context.Background(), PaymentInput{
		PayeeName:    "Okello Farmers Co-op",
		PayeeType:    PayeeFarmer,
		LotReference: "LOT-2026-014",
		Amount:       decimal.NewFromInt(120000),
		Actor:        "Frank Finance",
	})
	require.NoError(t, err)
	require.Equal(t, PayeeFarmer, p.PayeeType)
	require.Len(t, led.entries, 1)
	require.Equal(t, ledger.TypePayment, led.entries[0].TransactionType)
	require.True(t, led.balance.Equal(decimal.NewFromInt(380000)))
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _, led := newService(0)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		PayeeName: "Okello Farmers Co-op",
		PayeeType: "broker",
		Amount:    decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, led.entries)
}

func TestAdvanceLifecycle(t *testing.T) {
	svc, _, led := newService(300000)

	advance, err := svc.IssueAdvance(context.Background(), AdvanceInput{
		EmployeeEmail: "driver@nileharvest.test",
		EmployeeName:  "Dan Driver",
		Amount:        decimal.NewFromInt(100000),
		Reason:        "fuel for Kasese run",
		Actor:         "Frank Finance",
	})
	require.NoError(t, err)
	require.Equal(t, AdvanceOutstanding, advance.Status)
	require.True(t, led.balance.Equal(decimal.NewFromInt(200000)))

	partial, err := svc.RecoverAdvance(context.Background(), advance.ID, decimal.NewFromInt(40000), "Frank Finance")
	require.NoError(t, err)
	require.Equal(t, AdvanceOutstanding, partial.Status)
	require.True(t, partial.Outstanding().Equal(decimal.NewFromInt(60000)))
	require.True(t, led.balance.Equal(decimal.NewFromInt(240000)))
	require.Equal(t, ledger.TypeRecovery, led.entries[len(led.entries)-1].TransactionType)

	full, err := svc.RecoverAdvance(context.Background(), advance.ID, decimal.NewFromInt(60000), "Frank Finance")
	require.NoError(t, err)
	require.Equal(t, AdvanceRecovered, full.Status)
	require.True(t, led.balance.Equal(decimal.NewFromInt(300000)))

	_, err = svc.RecoverAdvance(context.Background(), advance.ID, decimal.NewFromInt(1), "Frank Finance")
	require.ErrorIs(t, err, ErrAdvanceClosed)
}

func TestRecoverAdvanceRejectsOverRecovery(t *testing.T) {
	svc, _, _ := newService(300000)

	advance, err := svc.IssueAdvance(context.Background(), AdvanceInput{
		EmployeeEmail: "driver@nileharvest.test",
		EmployeeName:  "Dan Driver",
		Amount:        decimal.NewFromInt(50000),
		Actor:         "Frank Finance",
	})
	require.NoError(t, err)

	_, err = svc.RecoverAdvance(context.Background(), advance.ID, decimal.NewFromInt(50001), "Frank Finance")
	require.ErrorIs(t, err, ErrOverRecovery)
}

func TestOutstandingAdvancesTotal(t *testing.T) {
	svc, _, _ := newService(1000000)

	a1, err := svc.IssueAdvance(context.Background(), AdvanceInput{
		EmployeeEmail: "a@nileharvest.test", EmployeeName: "A", Amount: decimal.NewFromInt(30000), Actor: "F",
	})
	require.NoError(t, err)
	_, err = svc.IssueAdvance(context.Background(), AdvanceInput{
		EmployeeEmail: "b@nileharvest.test", EmployeeName: "B", Amount: decimal.NewFromInt(20000), Actor: "F",
	})
	require.NoError(t, err)

	_, err = svc.RecoverAdvance(context.Background(), a1.ID, decimal.NewFromInt(10000), "F")
	require.NoError(t, err)

	total, err := svc.OutstandingAdvances(context.Background())
	require.NoError(t, err)
	require.True(t, total.Equal(decimal.NewFromInt(40000)))
}
