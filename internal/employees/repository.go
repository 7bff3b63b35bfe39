package employees

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const employeeColumns = `id, name, email, role, department, permissions, status, password_hash, created_at, updated_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.Department, &e.Permissions, &e.Status, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Employee{}, ErrNotFound
		}
		return Employee{}, err
	}
	return e, nil
}

// FindByEmail returns the employee with the given email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE lower(email)=lower($1)`, email)
	return scanEmployee(row)
}

// Get returns the employee by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Employee, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id)
	return scanEmployee(row)
}

// List returns employees ordered by name, optionally filtered by department.
func (r *Repository) List(ctx context.Context, department string) ([]Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	args := []any{}
	if department != "" {
		query += ` WHERE department=$1`
		args = append(args, department)
	}
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &e.Department, &e.Permissions, &e.Status, &e.PasswordHash, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a new employee and returns the stored record.
func (r *Repository) Create(ctx context.Context, e Employee) (Employee, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO employees (name, email, role, department, permissions, status, password_hash, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING `+employeeColumns,
		e.Name, e.Email, e.Role, e.Department, e.Permissions, e.Status, e.PasswordHash)
	created, err := scanEmployee(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Employee{}, ErrDuplicateEmail
		}
		return Employee{}, err
	}
	return created, nil
}

// Update replaces mutable fields on an employee record.
func (r *Repository) Update(ctx context.Context, e Employee) (Employee, error) {
	row := r.pool.QueryRow(ctx, `UPDATE employees SET name=$2, role=$3, department=$4, permissions=$5, status=$6, updated_at=NOW()
WHERE id=$1 RETURNING `+employeeColumns,
		e.ID, e.Name, e.Role, e.Department, e.Permissions, e.Status)
	return scanEmployee(row)
}
