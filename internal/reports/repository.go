package reports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSnapshotNotFound indicates no stored statement for the requested day.
var ErrSnapshotNotFound = errors.New("reports: snapshot not found")

// Repository stores nightly daily-statement snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveDailySnapshot upserts the statement for its date.
func (r *Repository) SaveDailySnapshot(ctx context.Context, statement DailyCashStatement) error {
	payload, err := json.Marshal(statement)
	if err != nil {
		return err
	}
	day := statement.Date.Format("2006-01-02")
	_, err = r.pool.Exec(ctx, `INSERT INTO finance_daily_statements (statement_date, payload, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (statement_date) DO UPDATE SET payload=EXCLUDED.payload, created_at=NOW()`, day, payload)
	return err
}

// GetDailySnapshot loads the stored statement for a date.
func (r *Repository) GetDailySnapshot(ctx context.Context, date time.Time) (DailyCashStatement, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT payload FROM finance_daily_statements WHERE statement_date=$1`,
		date.Format("2006-01-02")).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyCashStatement{}, ErrSnapshotNotFound
		}
		return DailyCashStatement{}, err
	}
	var statement DailyCashStatement
	if err := json.Unmarshal(payload, &statement); err != nil {
		return DailyCashStatement{}, err
	}
	return statement, nil
}
