package approvals

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for approval requests.
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

const requestColumns = `id, type, title, description, amount, department, requested_by, priority, status,
admin_approved, admin_approved_by, admin_approved_at,
finance_approved, finance_approved_by, finance_approved_at,
rejection_reason, created_at, updated_at`

// Create inserts a new request in the initial pending state.
func (r *Repository) Create(ctx context.Context, q db.Querier, req Request) (Request, error) {
	row := q.QueryRow(ctx, `INSERT INTO approval_requests (type, title, description, amount, department, requested_by, priority, status, admin_approved, finance_approved, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false, false, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		req.Type, req.Title, req.Description, req.Amount, req.Department, req.RequestedBy, req.Priority, StatusPending)
	if err := row.Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return Request{}, err
	}
	req.Status = StatusPending
	return req, nil
}

// Get fetches one request.
func (r *Repository) Get(ctx context.Context, q db.Querier, id uuid.UUID) (Request, error) {
	return r.scan(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id))
}

// GetForUpdate fetches one request and locks the row for the transaction, so
// concurrent transitions on the same request serialize.
func (r *Repository) GetForUpdate(ctx context.Context, q db.Querier, id uuid.UUID) (Request, error) {
	return r.scan(q.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1 FOR UPDATE`, id))
}

func (r *Repository) scan(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.Type, &req.Title, &req.Description, &req.Amount, &req.Department,
		&req.RequestedBy, &req.Priority, &req.Status,
		&req.AdminApproved, &req.AdminApprovedBy, &req.AdminApprovedAt,
		&req.FinanceApproved, &req.FinanceApprovedBy, &req.FinanceApprovedAt,
		&req.RejectionReason, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// ListFilter narrows request listings.
type ListFilter struct {
	Status      string
	Department  string
	RequestedBy string
	Limit       int
}

// List returns requests matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		query += ` AND department = $` + strconv.Itoa(len(args))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		query += ` AND lower(requested_by) = lower($` + strconv.Itoa(len(args)) + `)`
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.Type, &req.Title, &req.Description, &req.Amount, &req.Department,
			&req.RequestedBy, &req.Priority, &req.Status,
			&req.AdminApproved, &req.AdminApprovedBy, &req.AdminApprovedAt,
			&req.FinanceApproved, &req.FinanceApprovedBy, &req.FinanceApprovedAt,
			&req.RejectionReason, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// SetAdminApproval records the admin stage sign-off.
func (r *Repository) SetAdminApproval(ctx context.Context, q db.Querier, id uuid.UUID, approver string, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE approval_requests
SET admin_approved=true, admin_approved_by=$2, admin_approved_at=$3, status=$4, updated_at=NOW()
WHERE id=$1`, id, approver, at, StatusPendingFinance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetFinanceApproval records the finance stage sign-off.
func (r *Repository) SetFinanceApproval(ctx context.Context, q db.Querier, id uuid.UUID, approver string, at time.Time) error {
	tag, err := q.Exec(ctx, `UPDATE approval_requests
SET finance_approved=true, finance_approved_by=$2, finance_approved_at=$3, status=$4, updated_at=NOW()
WHERE id=$1`, id, approver, at, StatusApproved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRejected marks the request rejected. The finance flag resets so the
// derivation cannot resurrect the request as approved.
func (r *Repository) SetRejected(ctx context.Context, q db.Querier, id uuid.UUID, reason string) error {
	tag, err := q.Exec(ctx, `UPDATE approval_requests
SET status=$2, finance_approved=false, rejection_reason=NULLIF($3, ''), updated_at=NOW()
WHERE id=$1`, id, StatusRejected, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
