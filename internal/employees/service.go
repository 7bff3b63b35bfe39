package employees

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nileharvest/backoffice/internal/rbac"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	FindByEmail(ctx context.Context, email string) (Employee, error)
	Get(ctx context.Context, id uuid.UUID) (Employee, error)
	List(ctx context.Context, department string) ([]Employee, error)
	Create(ctx context.Context, e Employee) (Employee, error)
	Update(ctx context.Context, e Employee) (Employee, error)
}

// Service manages employee reference data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the employee service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new employee record.
type CreateInput struct {
	Name        string
	Email       string
	Role        string
	Department  string
	Permissions []string
	Password    string
}

// Create registers a new employee.
func (s *Service) Create(ctx context.Context, input CreateInput) (Employee, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Name == "" || input.Email == "" || input.Role == "" {
		return Employee{}, ErrValidation
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return Employee{}, err
	}
	return s.repo.Create(ctx, Employee{
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		Department:   input.Department,
		Permissions:  input.Permissions,
		Status:       StatusActive,
		PasswordHash: string(hash),
	})
}

// UpdateInput describes mutable employee fields.
type UpdateInput struct {
	ID          uuid.UUID
	Name        string
	Role        string
	Department  string
	Permissions []string
	Status      Status
}

// Update adjusts the employee record.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Employee, error) {
	current, err := s.repo.Get(ctx, input.ID)
	if err != nil {
		return Employee{}, err
	}
	if input.Name != "" {
		current.Name = strings.TrimSpace(input.Name)
	}
	if input.Role != "" {
		current.Role = input.Role
	}
	if input.Department != "" {
		current.Department = input.Department
	}
	if input.Permissions != nil {
		current.Permissions = input.Permissions
	}
	if input.Status != "" {
		if input.Status != StatusActive && input.Status != StatusDisabled {
			return Employee{}, ErrValidation
		}
		current.Status = input.Status
	}
	return s.repo.Update(ctx, current)
}

// Get fetches a single employee.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Employee, error) {
	return s.repo.Get(ctx, id)
}

// GetByEmail fetches a single employee by email.
func (s *Service) GetByEmail(ctx context.Context, email string) (Employee, error) {
	return s.repo.FindByEmail(ctx, email)
}

// List returns employees, optionally filtered by department.
func (s *Service) List(ctx context.Context, department string) ([]Employee, error) {
	return s.repo.List(ctx, department)
}

// ActorByEmail resolves an active employee into an rbac actor.
// Disabled employees resolve to no actor.
func (s *Service) ActorByEmail(ctx context.Context, email string) (rbac.Actor, error) {
	emp, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return rbac.Actor{}, err
	}
	if !emp.IsActive() {
		return rbac.Actor{}, ErrNotFound
	}
	return rbac.Actor{
		Name:        emp.Name,
		Email:       emp.Email,
		Role:        emp.Role,
		Permissions: emp.Permissions,
	}, nil
}
