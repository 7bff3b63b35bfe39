package notifications

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for notifications.
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

const notificationColumns = `id, type, title, message, priority, is_read, target_user_email, sender_email, metadata, delivery, created_at, read_at`

// Insert appends an outbox row using the supplied querier, so it can join
// the transaction of the action that produced it.
func (r *Repository) Insert(ctx context.Context, q db.Querier, n Notification) (Notification, error) {
	metaJSON, err := json.Marshal(n.Metadata)
	if err != nil {
		return Notification{}, err
	}
	row := q.QueryRow(ctx, `INSERT INTO finance_notifications (type, title, message, priority, is_read, target_user_email, sender_email, metadata, delivery, created_at)
VALUES ($1, $2, $3, $4, false, $5, $6, $7, $8, NOW()) RETURNING id, created_at`,
		n.Type, n.Title, n.Message, n.Priority, n.TargetUserEmail, n.SenderEmail, metaJSON, DeliveryPending)
	if err := row.Scan(&n.ID, &n.CreatedAt); err != nil {
		return Notification{}, err
	}
	n.Delivery = DeliveryPending
	return n, nil
}

// Get fetches one notification.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Notification, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+notificationColumns+` FROM finance_notifications WHERE id=$1`, id))
}

func (r *Repository) scan(row pgx.Row) (Notification, error) {
	var n Notification
	var metaJSON []byte
	if err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.IsRead, &n.TargetUserEmail, &n.SenderEmail, &metaJSON, &n.Delivery, &n.CreatedAt, &n.ReadAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	if len(metaJSON) > 0 {
		_ = json.Unmarshal(metaJSON, &n.Metadata)
	}
	return n, nil
}

// ListForRecipient returns targeted and broadcast notifications, newest first.
func (r *Repository) ListForRecipient(ctx context.Context, email string, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM finance_notifications
WHERE target_user_email IS NULL OR lower(target_user_email)=lower($1)
ORDER BY created_at DESC LIMIT $2`, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListPendingDelivery returns undelivered outbox rows, oldest first.
func (r *Repository) ListPendingDelivery(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+notificationColumns+` FROM finance_notifications
WHERE delivery=$1 ORDER BY created_at ASC LIMIT $2`, DeliveryPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *Repository) collect(rows pgx.Rows) ([]Notification, error) {
	var out []Notification
	for rows.Next() {
		var n Notification
		var metaJSON []byte
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.Priority, &n.IsRead, &n.TargetUserEmail, &n.SenderEmail, &metaJSON, &n.Delivery, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &n.Metadata)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags a notification read by its recipient.
func (r *Repository) MarkRead(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE finance_notifications SET is_read=true, read_at=NOW()
WHERE id=$1 AND (target_user_email IS NULL OR lower(target_user_email)=lower($2))`, id, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UnreadCount counts unread notifications visible to the recipient.
func (r *Repository) UnreadCount(ctx context.Context, email string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM finance_notifications
WHERE is_read=false AND (target_user_email IS NULL OR lower(target_user_email)=lower($1))`, email).Scan(&count)
	return count, err
}

// SetDelivery updates the outbox delivery state.
func (r *Repository) SetDelivery(ctx context.Context, id uuid.UUID, state string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE finance_notifications SET delivery=$2 WHERE id=$1`, id, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
