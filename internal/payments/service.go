package payments

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
	InsertPayment(ctx context.Context, q db.Querier, p Payment) (Payment, error)
	ListPayments(ctx context.Context, from, to time.Time, limit int) ([]Payment, error)
	InsertAdvance(ctx context.Context, q db.Querier, a Advance) (Advance, error)
	GetAdvance(ctx context.Context, id uuid.UUID) (Advance, error)
	GetAdvanceForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (Advance, error)
	UpdateAdvanceRecovery(ctx context.Context, q db.Querier, id uuid.UUID, recovered decimal.Decimal, status string) error
	ListAdvances(ctx context.Context, onlyOutstanding bool, limit int) ([]Advance, error)
	SumOutstandingAdvances(ctx context.Context) (decimal.Decimal, error)
}

// LedgerPort posts cash movements for payments and advances.
type LedgerPort interface {
	Apply(ctx context.Context, q db.Querier, input ledger.EntryInput) (ledger.Transaction, error)
}

// Service records supplier/farmer payments and staff advances, keeping the
// cash ledger in step with every movement.
type Service struct {
	repo   RepositoryPort
	ledger LedgerPort
	feed   *events.Publisher
	logger *slog.Logger
}

// NewService constructs the payments service.
func NewService(repo RepositoryPort, ledgerPort LedgerPort, feed *events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, ledger: ledgerPort, feed: feed, logger: logger}
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	PayeeName    string
	PayeeType    string
	LotReference string
	Description  string
	Amount       decimal.Decimal
	PaymentDate  time.Time
	Actor        string
}

// RecordPayment writes the payment and its ledger debit in one transaction.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (Payment, error) {
	if strings.TrimSpace(input.PayeeName) == "" || !input.Amount.IsPositive() {
		return Payment{}, ErrValidation
	}
	if input.PayeeType != PayeeSupplier && input.PayeeType != PayeeFarmer {
		return Payment{}, ErrValidation
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = time.Now()
	}

	var recorded Payment
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		var err error
		recorded, err = s.repo.InsertPayment(ctx, q, Payment{
			PayeeName:    input.PayeeName,
			PayeeType:    input.PayeeType,
			LotReference: input.LotReference,
			Description:  input.Description,
			Amount:       input.Amount,
			PaymentDate:  input.PaymentDate,
			RecordedBy:   input.Actor,
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Apply(ctx, q, ledger.EntryInput{
			Type:      ledger.TypePayment,
			Amount:    input.Amount,
			Reference: "Payment to " + input.PayeeName,
			Actor:     input.Actor,
		})
		return err
	})
	if err != nil {
		return Payment{}, err
	}
	s.feed.Publish(ctx, "payment_records", events.OpInsert, recorded)
	return recorded, nil
}

// ListPayments returns payments in a period.
func (s *Service) ListPayments(ctx context.Context, from, to time.Time, limit int) ([]Payment, error) {
	return s.repo.ListPayments(ctx, from, to, limit)
}

// AdvanceInput describes a staff advance to issue.
type AdvanceInput struct {
	EmployeeEmail string
	EmployeeName  string
	Amount        decimal.Decimal
	Reason        string
	Actor         string
}

// IssueAdvance pays out a staff advance. The cash leaves as a withdrawal and
// the advance is tracked until recovered.
func (s *Service) IssueAdvance(ctx context.Context, input AdvanceInput) (Advance, error) {
	if strings.TrimSpace(input.EmployeeEmail) == "" || !input.Amount.IsPositive() {
		return Advance{}, ErrValidation
	}

	var issued Advance
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		var err error
		issued, err = s.repo.InsertAdvance(ctx, q, Advance{
			EmployeeEmail: input.EmployeeEmail,
			EmployeeName:  input.EmployeeName,
			Amount:        input.Amount,
			Reason:        input.Reason,
			IssuedBy:      input.Actor,
		})
		if err != nil {
			return err
		}
		_, err = s.ledger.Apply(ctx, q, ledger.EntryInput{
			Type:      ledger.TypeWithdrawal,
			Amount:    input.Amount,
			Reference: "Staff advance: " + input.EmployeeName,
			Actor:     input.Actor,
		})
		return err
	})
	if err != nil {
		return Advance{}, err
	}
	s.feed.Publish(ctx, "finance_advances", events.OpInsert, issued)
	return issued, nil
}

// RecoverAdvance records an instalment against an outstanding advance and
// posts the matching recovery credit to the ledger.
func (s *Service) RecoverAdvance(ctx context.Context, id uuid.UUID, amount decimal.Decimal, actor string) (Advance, error) {
	if !amount.IsPositive() {
		return Advance{}, ErrValidation
	}

	var updated Advance
	err := s.repo.WithTx(ctx, func(q db.Querier) error {
		advance, err := s.repo.GetAdvanceForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if advance.Status == AdvanceRecovered {
			return ErrAdvanceClosed
		}
		if amount.GreaterThan(advance.Outstanding()) {
			return ErrOverRecovery
		}

		recovered := advance.AmountRecovered.Add(amount)
		status := AdvanceOutstanding
		if recovered.GreaterThanOrEqual(advance.Amount) {
			status = AdvanceRecovered
		}
		if err := s.repo.UpdateAdvanceRecovery(ctx, q, id, recovered, status); err != nil {
			return err
		}
		if _, err := s.ledger.Apply(ctx, q, ledger.EntryInput{
			Type:      ledger.TypeRecovery,
			Amount:    amount,
			Reference: "Advance recovery: " + advance.EmployeeName,
			Actor:     actor,
		}); err != nil {
			return err
		}

		updated = advance
		updated.AmountRecovered = recovered
		updated.Status = status
		return nil
	})
	if err != nil {
		return Advance{}, err
	}
	s.feed.Publish(ctx, "finance_advances", events.OpUpdate, updated)
	return updated, nil
}

// ListAdvances returns advances, optionally only outstanding ones.
func (s *Service) ListAdvances(ctx context.Context, onlyOutstanding bool, limit int) ([]Advance, error) {
	return s.repo.ListAdvances(ctx, onlyOutstanding, limit)
}

// OutstandingAdvances totals the unrecovered balance across advances.
func (s *Service) OutstandingAdvances(ctx context.Context) (decimal.Decimal, error) {
	return s.repo.SumOutstandingAdvances(ctx)
}
