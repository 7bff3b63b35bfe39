package payments

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

// Repository provides PostgreSQL backed persistence for payments and
// advances.
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

const paymentColumns = `id, payee_name, payee_type, lot_reference, description, amount, payment_date, recorded_by, created_at`

// InsertPayment appends a payment record on the supplied querier.
func (r *Repository) InsertPayment(ctx context.Context, q db.Querier, p Payment) (Payment, error) {
	row := q.QueryRow(ctx, `INSERT INTO payment_records (payee_name, payee_type, lot_reference, description, amount, payment_date, recorded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW()) RETURNING id, created_at`,
		p.PayeeName, p.PayeeType, p.LotReference, p.Description, p.Amount, p.PaymentDate, p.RecordedBy)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Payment{}, err
	}
	return p, nil
}

// ListPayments returns payments in a period, newest first.
func (r *Repository) ListPayments(ctx context.Context, from, to time.Time, limit int) ([]Payment, error) {
	if limit <= 0 {
		limit = 200
	}
	if to.IsZero() {
		to = time.Now().AddDate(100, 0, 0)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payment_records
WHERE payment_date >= $1 AND payment_date < $2 ORDER BY payment_date DESC, created_at DESC LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.PayeeName, &p.PayeeType, &p.LotReference, &p.Description, &p.Amount, &p.PaymentDate, &p.RecordedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const advanceColumns = `id, employee_email, employee_name, amount, amount_recovered, reason, status, issued_by, issued_at, updated_at`

// InsertAdvance appends an advance on the supplied querier.
func (r *Repository) InsertAdvance(ctx context.Context, q db.Querier, a Advance) (Advance, error) {
	row := q.QueryRow(ctx, `INSERT INTO finance_advances (employee_email, employee_name, amount, amount_recovered, reason, status, issued_by, issued_at, updated_at)
VALUES ($1, $2, $3, 0, $4, $5, $6, NOW(), NOW()) RETURNING id, issued_at, updated_at`,
		a.EmployeeEmail, a.EmployeeName, a.Amount, a.Reason, AdvanceOutstanding, a.IssuedBy)
	if err := row.Scan(&a.ID, &a.IssuedAt, &a.UpdatedAt); err != nil {
		return Advance{}, err
	}
	a.Status = AdvanceOutstanding
	a.AmountRecovered = decimal.Zero
	return a, nil
}

// GetAdvanceForUpdate fetches an advance and locks it for the transaction.
func (r *Repository) GetAdvanceForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (Advance, error) {
	row := q.QueryRow(ctx, `SELECT `+advanceColumns+` FROM finance_advances WHERE id=$1 FOR UPDATE`, id)
	return scanAdvance(row)
}

// GetAdvance fetches one advance.
func (r *Repository) GetAdvance(ctx context.Context, id uuid.UUID) (Advance, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+advanceColumns+` FROM finance_advances WHERE id=$1`, id)
	return scanAdvance(row)
}

func scanAdvance(row pgx.Row) (Advance, error) {
	var a Advance
	if err := row.Scan(&a.ID, &a.EmployeeEmail, &a.EmployeeName, &a.Amount, &a.AmountRecovered, &a.Reason, &a.Status, &a.IssuedBy, &a.IssuedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Advance{}, ErrNotFound
		}
		return Advance{}, err
	}
	return a, nil
}

// UpdateAdvanceRecovery writes the new recovered amount and status.
func (r *Repository) UpdateAdvanceRecovery(ctx context.Context, q db.Querier, id uuid.UUID, recovered decimal.Decimal, status string) error {
	tag, err := q.Exec(ctx, `UPDATE finance_advances SET amount_recovered=$2, status=$3, updated_at=NOW() WHERE id=$1`, id, recovered, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAdvances returns advances, optionally only outstanding ones.
func (r *Repository) ListAdvances(ctx context.Context, onlyOutstanding bool, limit int) ([]Advance, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT ` + advanceColumns + ` FROM finance_advances`
	args := []any{}
	if onlyOutstanding {
		query += ` WHERE status=$1`
		args = append(args, AdvanceOutstanding)
	}
	query += ` ORDER BY issued_at DESC LIMIT $` + itoa(len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Advance
	for rows.Next() {
		var a Advance
		if err := rows.Scan(&a.ID, &a.EmployeeEmail, &a.EmployeeName, &a.Amount, &a.AmountRecovered, &a.Reason, &a.Status, &a.IssuedBy, &a.IssuedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SumOutstandingAdvances totals the unrecovered advance balance.
func (r *Repository) SumOutstandingAdvances(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount - amount_recovered), 0) FROM finance_advances WHERE status=$1`, AdvanceOutstanding).Scan(&total)
	return total, err
}

func itoa(n int) string { return strconv.Itoa(n) }
