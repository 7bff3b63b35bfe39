// Package auth implements session login against the employee directory.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/nileharvest/backoffice/internal/employees"
	"github.com/nileharvest/backoffice/internal/shared"
)

// EmployeeSource resolves employees for credential checks.
type EmployeeSource interface {
	GetByEmail(ctx context.Context, email string) (employees.Employee, error)
}

// Service validates credentials.
type Service struct {
	source EmployeeSource
	logger *slog.Logger
}

// NewService constructs the auth service.
func NewService(source EmployeeSource, logger *slog.Logger) *Service {
	return &Service{source: source, logger: logger}
}

// Login checks the email/password pair and returns the employee on success.
// Disabled accounts and unknown emails fail identically so the response does
// not leak which addresses exist.
func (s *Service) Login(ctx context.Context, email, password string) (employees.Employee, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return employees.Employee{}, shared.ErrInvalidCredentials
	}

	employee, err := s.source.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, employees.ErrNotFound) {
			return employees.Employee{}, shared.ErrInvalidCredentials
		}
		return employees.Employee{}, err
	}
	if employee.Status != employees.StatusActive {
		return employees.Employee{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)); err != nil {
		return employees.Employee{}, shared.ErrInvalidCredentials
	}
	return employee, nil
}
