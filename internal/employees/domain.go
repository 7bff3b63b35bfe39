package employees

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Employee account statuses.
type Status string

const (
	StatusActive   Status = "Active"
	StatusDisabled Status = "Disabled"
)

// Employee represents a staff record used for login and role gating.
type Employee struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Role         string
	Department   string
	Permissions  []string
	Status       Status
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the employee may sign in.
func (e Employee) IsActive() bool {
	return e.Status == StatusActive
}

var (
	// ErrNotFound indicates the employee record is missing.
	ErrNotFound = errors.New("employees: not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("employees: email already registered")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("employees: invalid input")
)
