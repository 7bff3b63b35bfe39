package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newFeed(t *testing.T) (*Publisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPublisher(client, logger), client
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	feed, client := newFeed(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	changes := Subscribe(ctx, client, logger, "approval_requests")

	// Give the subscription a moment to register before publishing.
	time.Sleep(100 * time.Millisecond)

	type row struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	feed.Publish(ctx, "approval_requests", OpUpdate, row{ID: "r-1", Status: "Pending Finance"})

	select {
	case change := <-changes:
		require.Equal(t, "approval_requests", change.Table)
		require.Equal(t, OpUpdate, change.Op)
		require.WithinDuration(t, time.Now(), change.At, 5*time.Second)
		var decoded row
		require.NoError(t, json.Unmarshal(change.Row, &decoded))
		require.Equal(t, "r-1", decoded.ID)
		require.Equal(t, "Pending Finance", decoded.Status)
	case <-ctx.Done():
		t.Fatal("timed out waiting for change event")
	}
}

func TestSubscribeIsScopedToTables(t *testing.T) {
	feed, client := newFeed(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	changes := Subscribe(ctx, client, logger, "finance_notifications")

	time.Sleep(100 * time.Millisecond)

	feed.Publish(ctx, "finance_cash_transactions", OpInsert, map[string]string{"id": "tx-1"})
	feed.Publish(ctx, "finance_notifications", OpInsert, map[string]string{"id": "n-1"})

	select {
	case change := <-changes:
		require.Equal(t, "finance_notifications", change.Table)
	case <-ctx.Done():
		t.Fatal("timed out waiting for change event")
	}
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var feed *Publisher
	feed.Publish(context.Background(), "finance_notifications", OpInsert, map[string]string{"id": "n-1"})

	empty := NewPublisher(nil, nil)
	empty.Publish(context.Background(), "finance_notifications", OpInsert, map[string]string{"id": "n-2"})
}

func TestChannelFor(t *testing.T) {
	require.Equal(t, "feed:approval_requests", ChannelFor("approval_requests"))
}
