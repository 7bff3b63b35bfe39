package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nileharvest/backoffice/internal/employees"
	"github.com/nileharvest/backoffice/internal/shared"
)

type memSource struct {
	byEmail map[string]employees.Employee
}

func (m *memSource) GetByEmail(_ context.Context, email string) (employees.Employee, error) {
	e, ok := m.byEmail[email]
	if !ok {
		return employees.Employee{}, employees.ErrNotFound
	}
	return e, nil
}

func newAuthService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	source := &memSource{byEmail: map[string]employees.Employee{
		"frank@nileharvest.test": {
			Name:         "Frank Finance",
			Email:        "frank@nileharvest.test",
			Role:         "Finance Officer",
			Status:       employees.StatusActive,
			PasswordHash: string(hash),
		},
		"gone@nileharvest.test": {
			Name:         "Gone Person",
			Email:        "gone@nileharvest.test",
			Status:       employees.StatusDisabled,
			PasswordHash: string(hash),
		},
	}}
	return NewService(source, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	employee, err := svc.Login(ctx, "Frank@NileHarvest.test", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "Frank Finance", employee.Name)

	_, err = svc.Login(ctx, "frank@nileharvest.test", "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@nileharvest.test", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "gone@nileharvest.test", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}
