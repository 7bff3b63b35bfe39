package approvals

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage is the derived workflow state of a request. It is never stored;
// Derive recomputes it from the persisted fields on every read.
type Stage string

const (
	StagePendingAdmin   Stage = "Pending Admin"
	StagePendingFinance Stage = "Pending Finance"
	StageApproved       Stage = "Approved"
	StageRejected       Stage = "Rejected"
)

// Legacy status column values. The column is kept for compatibility with
// existing rows and consumers; transitions are decided on the derived stage.
const (
	StatusPending        = "Pending"
	StatusPendingFinance = "Pending Finance"
	StatusApproved       = "Approved"
	StatusRejected       = "Rejected"
)

// Well-known request types.
const (
	TypeExpenseRequest = "Expense Request"
	TypeRequisition    = "Requisition"
	TypeSalaryRequest  = "Salary Request"
)

// Request is an expenditure awaiting the two-stage sign-off.
type Request struct {
	ID                uuid.UUID       `json:"id"`
	Type              string          `json:"type"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Amount            decimal.Decimal `json:"amount"`
	Department        string          `json:"department"`
	RequestedBy       string          `json:"requested_by"`
	Priority          string          `json:"priority"`
	Status            string          `json:"status"`
	AdminApproved     bool            `json:"admin_approved"`
	AdminApprovedBy   *string         `json:"admin_approved_by"`
	AdminApprovedAt   *time.Time      `json:"admin_approved_at"`
	FinanceApproved   bool            `json:"finance_approved"`
	FinanceApprovedBy *string         `json:"finance_approved_by"`
	FinanceApprovedAt *time.Time      `json:"finance_approved_at"`
	RejectionReason   *string         `json:"rejection_reason"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Derive computes the workflow stage from the persisted fields. Rejection
// wins over everything, an approved flag or status wins over the pending
// stages, and the admin flag decides which pending stage applies.
func Derive(r Request) Stage {
	switch {
	case r.Status == StatusRejected:
		return StageRejected
	case r.FinanceApproved || r.Status == StatusApproved:
		return StageApproved
	case r.AdminApproved:
		return StagePendingFinance
	default:
		return StagePendingAdmin
	}
}

var (
	// ErrNotFound indicates a missing request.
	ErrNotFound = errors.New("approvals: request not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("approvals: invalid input")
	// ErrInvalidState indicates the request is not in the stage the
	// transition requires.
	ErrInvalidState = errors.New("approvals: transition not allowed from current state")
	// ErrForbidden indicates the actor lacks the role for the transition.
	ErrForbidden = errors.New("approvals: actor not allowed to perform this transition")
)
