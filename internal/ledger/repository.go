package ledger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the cash ledger.
// Methods accept a db.Querier so callers can compose them into larger
// transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx wraps fn in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(q db.Querier) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// Pool exposes the untransacted querier for read paths.
func (r *Repository) Pool() db.Querier {
	return r.pool
}

// GetBalance reads the singleton balance row.
func (r *Repository) GetBalance(ctx context.Context, q db.Querier) (Balance, error) {
	return r.scanBalance(q.QueryRow(ctx, `SELECT current_balance, version, last_updated, updated_by FROM finance_cash_balance WHERE singleton`))
}

// GetBalanceForUpdate reads the singleton balance row with a row lock.
func (r *Repository) GetBalanceForUpdate(ctx context.Context, q db.Querier) (Balance, error) {
	return r.scanBalance(q.QueryRow(ctx, `SELECT current_balance, version, last_updated, updated_by FROM finance_cash_balance WHERE singleton FOR UPDATE`))
}

func (r *Repository) scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	if err := row.Scan(&b.CurrentBalance, &b.Version, &b.LastUpdated, &b.UpdatedBy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

// UpdateBalance writes the new running total guarded by the version token.
func (r *Repository) UpdateBalance(ctx context.Context, q db.Querier, newBalance decimal.Decimal, expectedVersion int64, actor string) error {
	tag, err := q.Exec(ctx, `UPDATE finance_cash_balance SET current_balance=$1, version=version+1, last_updated=NOW(), updated_by=$2 WHERE singleton AND version=$3`,
		newBalance, actor, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// InsertTransaction appends a ledger entry and returns the stored row.
func (r *Repository) InsertTransaction(ctx context.Context, q db.Querier, t Transaction) (Transaction, error) {
	row := q.QueryRow(ctx, `INSERT INTO finance_cash_transactions (transaction_type, amount, balance_after, reference, created_by, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id, created_at`,
		t.TransactionType, t.Amount, t.BalanceAfter, t.Reference, t.CreatedBy, t.Status)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// ListFilter narrows ledger listings.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Type  TransactionType
	Limit int
}

// ListTransactions returns confirmed ledger entries, newest first.
func (r *Repository) ListTransactions(ctx context.Context, q db.Querier, filter ListFilter) ([]Transaction, error) {
	query := `SELECT id, transaction_type, amount, balance_after, reference, created_by, status, created_at
FROM finance_cash_transactions WHERE status=$1`
	args := []any{TxStatusConfirmed}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND created_at >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND created_at < $` + itoa(len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += ` AND transaction_type = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.TransactionType, &t.Amount, &t.BalanceAfter, &t.Reference, &t.CreatedBy, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SumConfirmed computes the signed sum of all confirmed entries before the
// cutoff. A zero cutoff sums the entire ledger.
func (r *Repository) SumConfirmed(ctx context.Context, q db.Querier, before time.Time) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(CASE WHEN transaction_type IN ('expense','salary','payment','withdrawal') THEN -amount ELSE amount END), 0)
FROM finance_cash_transactions WHERE status=$1`
	args := []any{TxStatusConfirmed}
	if !before.IsZero() {
		args = append(args, before)
		query += ` AND created_at < $2`
	}
	var sum decimal.Decimal
	if err := q.QueryRow(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
