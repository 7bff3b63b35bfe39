package payments

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payee types for payment records.
const (
	PayeeSupplier = "supplier"
	PayeeFarmer   = "farmer"
)

// Payment is a cash payment to a coffee supplier or farmer.
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	PayeeName    string          `json:"payee_name"`
	PayeeType    string          `json:"payee_type"`
	LotReference string          `json:"lot_reference"`
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"payment_date"`
	RecordedBy   string          `json:"recorded_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Advance statuses.
const (
	AdvanceOutstanding = "outstanding"
	AdvanceRecovered   = "recovered"
)

// Advance is a cash advance to a staff member, recovered in instalments.
type Advance struct {
	ID              uuid.UUID       `json:"id"`
	EmployeeEmail   string          `json:"employee_email"`
	EmployeeName    string          `json:"employee_name"`
	Amount          decimal.Decimal `json:"amount"`
	AmountRecovered decimal.Decimal `json:"amount_recovered"`
	Reason          string          `json:"reason"`
	Status          string          `json:"status"`
	IssuedBy        string          `json:"issued_by"`
	IssuedAt        time.Time       `json:"issued_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Outstanding returns the amount still to recover.
func (a Advance) Outstanding() decimal.Decimal {
	return a.Amount.Sub(a.AmountRecovered)
}

var (
	// ErrNotFound indicates a missing payment or advance.
	ErrNotFound = errors.New("payments: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("payments: invalid input")
	// ErrOverRecovery indicates a recovery larger than the outstanding amount.
	ErrOverRecovery = errors.New("payments: recovery exceeds outstanding amount")
	// ErrAdvanceClosed indicates the advance is already fully recovered.
	ErrAdvanceClosed = errors.New("payments: advance already recovered")
)
