package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nileharvest/backoffice/internal/platform/db"
)

type memRepo struct {
	rows map[uuid.UUID]*Notification
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[uuid.UUID]*Notification{}}
}

func (m *memRepo) Pool() db.Querier { return nil }

func (m *memRepo) Insert(_ context.Context, _ db.Querier, n Notification) (Notification, error) {
	n.ID = uuid.New()
	n.Delivery = DeliveryPending
	n.CreatedAt = time.Now()
	m.rows[n.ID] = &n
	return n, nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (Notification, error) {
	n, ok := m.rows[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return *n, nil
}

func (m *memRepo) ListForRecipient(_ context.Context, email string, _ int) ([]Notification, error) {
	var out []Notification
	for _, n := range m.rows {
		if n.Broadcast() || (n.TargetUserEmail != nil && *n.TargetUserEmail == email) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memRepo) ListPendingDelivery(_ context.Context, _ int) ([]Notification, error) {
	var out []Notification
	for _, n := range m.rows {
		if n.Delivery == DeliveryPending {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memRepo) MarkRead(_ context.Context, id uuid.UUID, _ string) error {
	n, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	n.IsRead = true
	n.ReadAt = &now
	return nil
}

func (m *memRepo) UnreadCount(_ context.Context, email string) (int, error) {
	count := 0
	for _, n := range m.rows {
		if n.IsRead {
			continue
		}
		if n.Broadcast() || (n.TargetUserEmail != nil && *n.TargetUserEmail == email) {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) SetDelivery(_ context.Context, id uuid.UUID, state string) error {
	n, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	n.Delivery = state
	return nil
}

type memEnqueuer struct {
	enqueued []uuid.UUID
	fail     bool
}

func (m *memEnqueuer) EnqueueNotificationDeliver(_ context.Context, id uuid.UUID) error {
	if m.fail {
		return errors.New("queue down")
	}
	m.enqueued = append(m.enqueued, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnqueueTxDefaultsAndValidation(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, testLogger())
	ctx := context.Background()

	_, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "approval_request"})
	require.ErrorIs(t, err, ErrValidation)

	n, err := svc.EnqueueTx(ctx, nil, NewNotification{
		Type:            "approval_request",
		Title:           "New expense request",
		TargetUserEmail: "  grace@nileharvest.co  ",
	})
	require.NoError(t, err)
	require.Equal(t, PriorityMedium, n.Priority)
	require.Equal(t, DeliveryPending, n.Delivery)
	require.NotNil(t, n.TargetUserEmail)
	require.Equal(t, "grace@nileharvest.co", *n.TargetUserEmail)
	require.False(t, n.Broadcast())
}

func TestDeliverIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, testLogger())
	ctx := context.Background()

	n, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "system", Title: "Maintenance tonight"})
	require.NoError(t, err)

	require.NoError(t, svc.Deliver(ctx, n.ID))
	got, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, DeliveryDelivered, got.Delivery)

	// Second delivery of the same row is a no-op, not an error.
	require.NoError(t, svc.Deliver(ctx, n.ID))

	require.ErrorIs(t, svc.Deliver(ctx, uuid.New()), ErrNotFound)
}

func TestSweepPendingReEnqueues(t *testing.T) {
	repo := newMemRepo()
	enq := &memEnqueuer{}
	svc := NewService(repo, nil, enq, testLogger())
	ctx := context.Background()

	first, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "system", Title: "One"})
	require.NoError(t, err)
	second, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "system", Title: "Two"})
	require.NoError(t, err)
	require.NoError(t, svc.Deliver(ctx, second.ID))

	count, err := svc.SweepPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, []uuid.UUID{first.ID}, enq.enqueued)
}

func TestDispatchSwallowsEnqueueErrors(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, &memEnqueuer{fail: true}, testLogger())
	ctx := context.Background()

	n, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "system", Title: "Still pending"})
	require.NoError(t, err)

	// Lost dispatch leaves the row pending for the sweep to find.
	svc.Dispatch(ctx, n.ID)
	got, err := repo.Get(ctx, n.ID)
	require.NoError(t, err)
	require.Equal(t, DeliveryPending, got.Delivery)
}

func TestRecipientScoping(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil, testLogger())
	ctx := context.Background()

	_, err := svc.EnqueueTx(ctx, nil, NewNotification{Type: "system", Title: "All hands"})
	require.NoError(t, err)
	targeted, err := svc.EnqueueTx(ctx, nil, NewNotification{
		Type: "approval_complete", Title: "Approved", TargetUserEmail: "sarah@nileharvest.co",
	})
	require.NoError(t, err)

	mine, err := svc.ListForRecipient(ctx, "sarah@nileharvest.co", 50)
	require.NoError(t, err)
	require.Len(t, mine, 2)

	others, err := svc.ListForRecipient(ctx, "peter@nileharvest.co", 50)
	require.NoError(t, err)
	require.Len(t, others, 1)

	count, err := svc.UnreadCount(ctx, "sarah@nileharvest.co")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	require.NoError(t, svc.MarkRead(ctx, targeted.ID, "sarah@nileharvest.co"))
	count, err = svc.UnreadCount(ctx, "sarah@nileharvest.co")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
