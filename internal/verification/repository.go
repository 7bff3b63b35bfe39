package verification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for verification records,
// lookup audit logs, and security questions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, code, kind, subject_name, subject_email, details, status, valid_until, issued_by, created_at, revoked_at`

// Create inserts a verification record.
func (r *Repository) Create(ctx context.Context, rec Record) (Record, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO verifications (code, kind, subject_name, subject_email, details, status, valid_until, issued_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW()) RETURNING id, created_at`,
		rec.Code, rec.Kind, rec.SubjectName, rec.SubjectEmail, rec.Details, StatusActive, rec.ValidUntil, rec.IssuedBy)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return Record{}, err
	}
	rec.Status = StatusActive
	return rec, nil
}

// GetByCode fetches a record by its normalized code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Record, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM verifications WHERE code=$1`, code)
	var rec Record
	err := row.Scan(&rec.ID, &rec.Code, &rec.Kind, &rec.SubjectName, &rec.SubjectEmail, &rec.Details,
		&rec.Status, &rec.ValidUntil, &rec.IssuedBy, &rec.CreatedAt, &rec.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Revoke marks a record revoked.
func (r *Repository) Revoke(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE verifications SET status=$2, revoked_at=NOW() WHERE id=$1`, id, StatusRevoked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AuditEntry is one verification lookup.
type AuditEntry struct {
	VerificationID *uuid.UUID
	Code           string
	Result         string
	ClientIP       string
	UserAgent      string
}

// InsertAudit logs one lookup. Best effort at the call site.
func (r *Repository) InsertAudit(ctx context.Context, entry AuditEntry) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO verification_audit_logs (verification_id, code, result, client_ip, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`, entry.VerificationID, entry.Code, entry.Result, entry.ClientIP, entry.UserAgent)
	return err
}

// DeleteExpired removes records whose validity lapsed more than the
// retention period ago. Returns the number of rows removed.
func (r *Repository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM verifications WHERE valid_until IS NOT NULL AND valid_until < $1 AND status <> $2`, olderThan, StatusRevoked)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SecurityQuestion is a stored question with its hashed answer.
type SecurityQuestion struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Question   string    `json:"question"`
	AnswerHash string    `json:"-"`
}

// ReplaceQuestions swaps the user's security questions atomically.
func (r *Repository) ReplaceQuestions(ctx context.Context, email string, questions []SecurityQuestion) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_security_questions WHERE lower(email)=lower($1)`, email); err != nil {
			return err
		}
		for _, q := range questions {
			if _, err := tx.Exec(ctx, `INSERT INTO user_security_questions (email, question, answer_hash, created_at)
VALUES ($1, $2, $3, NOW())`, email, q.Question, q.AnswerHash); err != nil {
				return err
			}
		}
		return nil
	})
}

// QuestionsFor returns the user's stored security questions.
func (r *Repository) QuestionsFor(ctx context.Context, email string) ([]SecurityQuestion, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, email, question, answer_hash FROM user_security_questions
WHERE lower(email)=lower($1) ORDER BY created_at`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SecurityQuestion
	for rows.Next() {
		var q SecurityQuestion
		if err := rows.Scan(&q.ID, &q.Email, &q.Question, &q.AnswerHash); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}
