package expenses

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense is a confirmed spend record. Rows are written either directly by
// finance or as the mirror of a finance-approved request.
type Expense struct {
	ID              uuid.UUID       `json:"id"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	ExpenseDate     time.Time       `json:"expense_date"`
	RecordedBy      string          `json:"recorded_by"`
	SourceRequestID *uuid.UUID      `json:"source_request_id"`
	CreatedAt       time.Time       `json:"created_at"`
}

var (
	// ErrNotFound indicates a missing expense.
	ErrNotFound = errors.New("expenses: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("expenses: invalid input")
)
