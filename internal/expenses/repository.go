package expenses

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for expenses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the untransacted querier.
func (r *Repository) Pool() db.Querier {
	return r.pool
}

// WithTx runs fn inside a database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error { return fn(tx) })
}

const expenseColumns = `id, category, description, amount, expense_date, recorded_by, source_request_id, created_at`

// Insert appends an expense row on the supplied querier.
func (r *Repository) Insert(ctx context.Context, q db.Querier, e Expense) (Expense, error) {
	row := q.QueryRow(ctx, `INSERT INTO finance_expenses (category, description, amount, expense_date, recorded_by, source_request_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
		e.Category, e.Description, e.Amount, e.ExpenseDate, e.RecordedBy, e.SourceRequestID)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return Expense{}, err
	}
	return e, nil
}

// Get fetches one expense.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM finance_expenses WHERE id=$1`, id)
	var e Expense
	if err := row.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.ExpenseDate, &e.RecordedBy, &e.SourceRequestID, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, ErrNotFound
		}
		return Expense{}, err
	}
	return e, nil
}

// ListFilter narrows expense listings.
type ListFilter struct {
	From     time.Time
	To       time.Time
	Category string
	Limit    int
}

// List returns expenses matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM finance_expenses WHERE 1=1`
	args := []any{}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND expense_date >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND expense_date < $` + itoa(len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += ` AND category = $` + itoa(len(args))
	}
	query += ` ORDER BY expense_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Category, &e.Description, &e.Amount, &e.ExpenseDate, &e.RecordedBy, &e.SourceRequestID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func itoa(n int) string { return strconv.Itoa(n) }

// SumByCategory aggregates expense totals per category over a period.
func (r *Repository) SumByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `SELECT category, COALESCE(SUM(amount), 0) FROM finance_expenses
WHERE expense_date >= $1 AND expense_date < $2 GROUP BY category`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := map[string]decimal.Decimal{}
	for rows.Next() {
		var category string
		var total decimal.Decimal
		if err := rows.Scan(&category, &total); err != nil {
			return nil, err
		}
		totals[category] = total
	}
	return totals, rows.Err()
}
