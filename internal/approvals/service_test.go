package approvals

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nileharvest/backoffice/internal/expenses"
	"github.com/nileharvest/backoffice/internal/ledger"
	"github.com/nileharvest/backoffice/internal/notifications"
	"github.com/nileharvest/backoffice/internal/platform/db"
	"github.com/nileharvest/backoffice/internal/rbac"
)

type memRepo struct {
	requests map[uuid.UUID]*Request
}

func newMemRepo() *memRepo {
	return &memRepo{requests: map[uuid.UUID]*Request{}}
}

func (m *memRepo) Pool() db.Querier { return nil }

func (m *memRepo) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return fn(nil)
}

func (m *memRepo) Create(_ context.Context, _ db.Querier, req Request) (Request, error) {
	req.ID = uuid.New()
	req.Status = StatusPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	m.requests[req.ID] = &req
	return req, nil
}

func (m *memRepo) Get(_ context.Context, _ db.Querier, id uuid.UUID) (Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (m *memRepo) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (Request, error) {
	return m.Get(ctx, q, id)
}

func (m *memRepo) List(_ context.Context, _ ListFilter) ([]Request, error) {
	out := make([]Request, 0, len(m.requests))
	for _, req := range m.requests {
		out = append(out, *req)
	}
	return out, nil
}

func (m *memRepo) SetAdminApproval(_ context.Context, _ db.Querier, id uuid.UUID, approver string, at time.Time) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.AdminApproved = true
	req.AdminApprovedBy = &approver
	req.AdminApprovedAt = &at
	req.Status = StatusPendingFinance
	return nil
}

func (m *memRepo) SetFinanceApproval(_ context.Context, _ db.Querier, id uuid.UUID, approver string, at time.Time) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.FinanceApproved = true
	req.FinanceApprovedBy = &approver
	req.FinanceApprovedAt = &at
	req.Status = StatusApproved
	return nil
}

func (m *memRepo) SetRejected(_ context.Context, _ db.Querier, id uuid.UUID, reason string) error {
	req, ok := m.requests[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = StatusRejected
	req.FinanceApproved = false
	if reason != "" {
		req.RejectionReason = &reason
	}
	return nil
}

type memLedger struct {
	balance      decimal.Decimal
	transactions []ledger.Transaction
}

func (m *memLedger) Apply(_ context.Context, _ db.Querier, input ledger.EntryInput) (ledger.Transaction, error) {
	if !input.Type.Valid() {
		return ledger.Transaction{}, ledger.ErrInvalidType
	}
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
		Status:          ledger.TxStatusConfirmed,
	}
	m.transactions = append(m.transactions, entry)
	return entry, nil
}

type memExpenses struct {
	rows []expenses.Expense
}

func (m *memExpenses) MirrorTx(_ context.Context, _ db.Querier, e expenses.Expense) (expenses.Expense, error) {
	e.ID = uuid.New()
	m.rows = append(m.rows, e)
	return e, nil
}

type memNotifier struct {
	queued     []notifications.Notification
	dispatched []uuid.UUID
}

func (m *memNotifier) EnqueueTx(_ context.Context, _ db.Querier, input notifications.NewNotification) (notifications.Notification, error) {
	n := notifications.Notification{
		ID:          uuid.New(),
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		Priority:    input.Priority,
		SenderEmail: input.SenderEmail,
		Metadata:    input.Metadata,
		Delivery:    notifications.DeliveryPending,
	}
	if input.TargetUserEmail != "" {
		target := input.TargetUserEmail
		n.TargetUserEmail = &target
	}
	m.queued = append(m.queued, n)
	return n, nil
}

func (m *memNotifier) Dispatch(_ context.Context, ids ...uuid.UUID) {
	m.dispatched = append(m.dispatched, ids...)
}

type fixture struct {
	service  *Service
	repo     *memRepo
	ledger   *memLedger
	expenses *memExpenses
	notifier *memNotifier
}

func newFixture(openingBalance decimal.Decimal) fixture {
	repo := newMemRepo()
	led := &memLedger{balance: openingBalance}
	exp := &memExpenses{}
	not := &memNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return fixture{
		service:  NewService(repo, led, exp, not, nil, nil, logger),
		repo:     repo,
		ledger:   led,
		expenses: exp,
		notifier: not,
	}
}

var (
	adminActor   = rbac.Actor{Name: "Alice Admin", Email: "alice@nileharvest.test", Role: "Administrator"}
	financeActor = rbac.Actor{Name: "Frank Finance", Email: "frank@nileharvest.test", Role: "Finance Officer"}
	plainActor   = rbac.Actor{Name: "Pat Plain", Email: "pat@nileharvest.test", Role: "Field Officer"}
)

func submit(t *testing.T, f fixture, amount int64) Request {
	t.Helper()
	created, err := f.service.Create(context.Background(), CreateInput{
		Type:        TypeExpenseRequest,
		Title:       "Jute bags for Gulu store",
		Amount:      decimal.NewFromInt(amount),
		Department:  "Operations",
		RequestedBy: "requester@nileharvest.test",
	})
	require.NoError(t, err)
	require.Equal(t, StagePendingAdmin, Derive(created))
	return created
}

func TestFullApprovalFlow(t *testing.T) {
	f := newFixture(decimal.NewFromInt(200000))
	req := submit(t, f, 50000)

	afterAdmin, err := f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.NoError(t, err)
	require.Equal(t, StagePendingFinance, Derive(afterAdmin))
	require.True(t, afterAdmin.AdminApproved)
	require.Equal(t, "Alice Admin", *afterAdmin.AdminApprovedBy)

	afterFinance, err := f.service.FinanceApprove(context.Background(), req.ID, financeActor)
	require.NoError(t, err)
	require.Equal(t, StageApproved, Derive(afterFinance))

	// One disbursement hit the ledger and moved the balance. The entry
	// references the request id so the ledger stays traceable to its source.
	require.Len(t, f.ledger.transactions, 1)
	entry := f.ledger.transactions[0]
	require.Equal(t, ledger.TypeExpense, entry.TransactionType)
	require.Equal(t, req.ID.String(), entry.Reference)
	require.True(t, entry.Amount.Equal(decimal.NewFromInt(50000)))
	require.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(150000)))
	require.True(t, f.ledger.balance.Equal(decimal.NewFromInt(150000)))

	// The expense mirror row references the request.
	require.Len(t, f.expenses.rows, 1)
	require.Equal(t, TypeExpenseRequest, f.expenses.rows[0].Category)
	require.Equal(t, req.ID, *f.expenses.rows[0].SourceRequestID)

	// The requester got a Medium-priority completion notification.
	var completion *notifications.Notification
	for i := range f.notifier.queued {
		if f.notifier.queued[i].Type == "approval_complete" {
			completion = &f.notifier.queued[i]
		}
	}
	require.NotNil(t, completion)
	require.Equal(t, notifications.PriorityMedium, completion.Priority)
	require.Equal(t, "requester@nileharvest.test", *completion.TargetUserEmail)
}

func TestFinanceApproveRequiresAdminStage(t *testing.T) {
	f := newFixture(decimal.NewFromInt(100000))
	req := submit(t, f, 10000)

	_, err := f.service.FinanceApprove(context.Background(), req.ID, financeActor)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, f.ledger.transactions)
	require.True(t, f.ledger.balance.Equal(decimal.NewFromInt(100000)))
}

func TestAdminApproveTwiceFails(t *testing.T) {
	f := newFixture(decimal.Zero)
	req := submit(t, f, 10000)

	_, err := f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.NoError(t, err)
	_, err = f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectionIsTerminal(t *testing.T) {
	f := newFixture(decimal.NewFromInt(100000))
	req := submit(t, f, 10000)

	_, err := f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.NoError(t, err)

	rejected, err := f.service.Reject(context.Background(), req.ID, financeActor, "duplicate request")
	require.NoError(t, err)
	require.Equal(t, StageRejected, Derive(rejected))
	require.False(t, rejected.FinanceApproved)

	// High-priority notification to the requester.
	last := f.notifier.queued[len(f.notifier.queued)-1]
	require.Equal(t, notifications.PriorityHigh, last.Priority)
	require.Equal(t, "requester@nileharvest.test", *last.TargetUserEmail)

	// Any later transition fails the stage precondition.
	_, err = f.service.FinanceApprove(context.Background(), req.ID, financeActor)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Empty(t, f.ledger.transactions)
}

func TestTransitionsEnforceRoles(t *testing.T) {
	f := newFixture(decimal.NewFromInt(100000))
	req := submit(t, f, 10000)

	_, err := f.service.AdminApprove(context.Background(), req.ID, plainActor)
	require.ErrorIs(t, err, ErrForbidden)

	_, err = f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.NoError(t, err)

	// An admin without finance capability cannot perform the finance stage.
	_, err = f.service.FinanceApprove(context.Background(), req.ID, rbac.Actor{Name: "Manny", Role: "Manager"})
	require.ErrorIs(t, err, ErrForbidden)

	// Super Admin short-circuits every gate.
	_, err = f.service.FinanceApprove(context.Background(), req.ID, rbac.Actor{Name: "Root", Role: "Super Admin"})
	require.NoError(t, err)
}

func TestRejectFromPendingAdmin(t *testing.T) {
	f := newFixture(decimal.Zero)
	req := submit(t, f, 5000)

	rejected, err := f.service.Reject(context.Background(), req.ID, adminActor, "")
	require.NoError(t, err)
	require.Equal(t, StageRejected, Derive(rejected))
	require.Nil(t, rejected.RejectionReason)
}

func TestFailedLedgerRollsBackNothingCommitted(t *testing.T) {
	f := newFixture(decimal.Zero)
	req := submit(t, f, 10000)

	_, err := f.service.AdminApprove(context.Background(), req.ID, adminActor)
	require.NoError(t, err)

	// Zero-amount requests cannot exist via Create; simulate a corrupt row.
	f.repo.requests[req.ID].Amount = decimal.Zero
	_, err = f.service.FinanceApprove(context.Background(), req.ID, financeActor)
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	require.Empty(t, f.ledger.transactions)
	require.Empty(t, f.expenses.rows)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(decimal.Zero)
	_, err := f.service.Create(context.Background(), CreateInput{
		Type:        TypeExpenseRequest,
		Title:       "No amount",
		Amount:      decimal.Zero,
		RequestedBy: "requester@nileharvest.test",
	})
	require.ErrorIs(t, err, ErrValidation)
}
