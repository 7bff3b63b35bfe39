package notifications

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nileharvest/backoffice/internal/events"
	"github.com/nileharvest/backoffice/internal/platform/db"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Pool() db.Querier
	Insert(ctx context.Context, q db.Querier, n Notification) (Notification, error)
	Get(ctx context.Context, id uuid.UUID) (Notification, error)
	ListForRecipient(ctx context.Context, email string, limit int) ([]Notification, error)
	ListPendingDelivery(ctx context.Context, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, email string) error
	UnreadCount(ctx context.Context, email string) (int, error)
	SetDelivery(ctx context.Context, id uuid.UUID, state string) error
}

// Enqueuer hands delivery work to the background queue.
type Enqueuer interface {
	EnqueueNotificationDeliver(ctx context.Context, id uuid.UUID) error
}

// Service coordinates the notification outbox. Writes happen inside the
// producing transaction, delivery to the live feed happens asynchronously.
type Service struct {
	repo     RepositoryPort
	feed     *events.Publisher
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewService constructs the notification service. enqueuer may be nil; the
// periodic sweep then picks pending rows up.
func NewService(repo RepositoryPort, feed *events.Publisher, enqueuer Enqueuer, logger *slog.Logger) *Service {
	return &Service{repo: repo, feed: feed, enqueuer: enqueuer, logger: logger}
}

// NewNotification describes an outbox entry to create.
type NewNotification struct {
	Type            string
	Title           string
	Message         string
	Priority        string
	TargetUserEmail string
	SenderEmail     string
	Metadata        map[string]any
}

// EnqueueTx writes an outbox row on the supplied querier so it commits or
// rolls back together with the producing action.
func (s *Service) EnqueueTx(ctx context.Context, q db.Querier, input NewNotification) (Notification, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Type) == "" {
		return Notification{}, ErrValidation
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	n := Notification{
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		Priority:    input.Priority,
		SenderEmail: input.SenderEmail,
		Metadata:    input.Metadata,
	}
	if target := strings.TrimSpace(input.TargetUserEmail); target != "" {
		n.TargetUserEmail = &target
	}
	return s.repo.Insert(ctx, q, n)
}

// Dispatch pushes delivery tasks for freshly committed outbox rows. Failures
// are logged only; the sweep job re-enqueues anything still pending.
func (s *Service) Dispatch(ctx context.Context, ids ...uuid.UUID) {
	if s.enqueuer == nil {
		return
	}
	for _, id := range ids {
		if err := s.enqueuer.EnqueueNotificationDeliver(ctx, id); err != nil && s.logger != nil {
			s.logger.Warn("notification enqueue failed", slog.String("id", id.String()), slog.Any("error", err))
		}
	}
}

// Deliver publishes one outbox row to the change feed and marks it
// delivered. Called from the background worker; an error makes the queue
// retry with backoff.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if n.Delivery == DeliveryDelivered {
		return nil
	}
	s.feed.Publish(ctx, "finance_notifications", events.OpInsert, n)
	return s.repo.SetDelivery(ctx, id, DeliveryDelivered)
}

// SweepPending re-enqueues outbox rows whose dispatch was lost, for example
// when the process crashed between commit and enqueue. Returns the number of
// rows re-enqueued.
func (s *Service) SweepPending(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPendingDelivery(ctx, 100)
	if err != nil {
		return 0, err
	}
	for _, n := range pending {
		s.Dispatch(ctx, n.ID)
	}
	return len(pending), nil
}

// ListForRecipient returns the recipient's notifications, newest first.
func (s *Service) ListForRecipient(ctx context.Context, email string, limit int) ([]Notification, error) {
	return s.repo.ListForRecipient(ctx, email, limit)
}

// MarkRead marks one notification read for the recipient.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID, email string) error {
	return s.repo.MarkRead(ctx, id, email)
}

// UnreadCount counts unread notifications visible to the recipient.
func (s *Service) UnreadCount(ctx context.Context, email string) (int, error) {
	return s.repo.UnreadCount(ctx, email)
}
