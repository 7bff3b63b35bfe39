package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies cash ledger entries.
type TransactionType string

const (
	TypeExpense    TransactionType = "expense"
	TypeSalary     TransactionType = "salary"
	TypeDeposit    TransactionType = "deposit"
	TypePayment    TransactionType = "payment"
	TypeRecovery   TransactionType = "recovery"
	TypeWithdrawal TransactionType = "withdrawal"
)

// Valid reports whether the type is a known ledger entry type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeExpense, TypeSalary, TypeDeposit, TypePayment, TypeRecovery, TypeWithdrawal:
		return true
	}
	return false
}

// Outflow reports whether the type decreases the cash balance.
func (t TransactionType) Outflow() bool {
	switch t {
	case TypeExpense, TypeSalary, TypePayment, TypeWithdrawal:
		return true
	}
	return false
}

// Signed returns the amount with the sign implied by the type.
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t.Outflow() {
		return amount.Neg()
	}
	return amount
}

// Transaction statuses.
const (
	TxStatusConfirmed = "confirmed"
	TxStatusPending   = "pending"
)

// Transaction is an immutable cash ledger entry.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	TransactionType TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	Reference       string          `json:"reference"`
	CreatedBy       string          `json:"created_by"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Balance is the singleton running cash total. Version guards against
// concurrent lost updates.
type Balance struct {
	CurrentBalance decimal.Decimal
	Version        int64
	LastUpdated    time.Time
	UpdatedBy      string
}

var (
	// ErrNotFound indicates a missing ledger record.
	ErrNotFound = errors.New("ledger: not found")
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrInvalidType indicates an unknown transaction type.
	ErrInvalidType = errors.New("ledger: unknown transaction type")
	// ErrConcurrentUpdate indicates the balance changed underneath the caller.
	ErrConcurrentUpdate = errors.New("ledger: balance was updated concurrently")
)
