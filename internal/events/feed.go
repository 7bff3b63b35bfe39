// Package events broadcasts typed row-change notifications over Redis
// pub/sub. Each event carries the table, the operation, and the changed row
// so subscribed clients can update incrementally instead of refetching whole
// tables.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Op enumerates row change operations.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is the payload published for every row mutation.
type Change struct {
	Table string          `json:"table"`
	Op    Op              `json:"op"`
	Row   json.RawMessage `json:"row"`
	At    time.Time       `json:"at"`
}

const channelPrefix = "feed:"

// ChannelFor returns the pub/sub channel name for a table.
func ChannelFor(table string) string {
	return channelPrefix + table
}

// Publisher emits change events. A nil publisher drops events silently so
// services can treat the feed as optional.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher constructs a Publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Publish broadcasts a change event. The feed is best effort: failures are
// logged and never propagated to the caller, durable delivery belongs to the
// notification outbox.
func (p *Publisher) Publish(ctx context.Context, table string, op Op, row any) {
	if p == nil || p.client == nil {
		return
	}
	rawRow, err := json.Marshal(row)
	if err != nil {
		p.warn("marshal change row", table, err)
		return
	}
	payload, err := json.Marshal(Change{Table: table, Op: op, Row: rawRow, At: time.Now().UTC()})
	if err != nil {
		p.warn("marshal change event", table, err)
		return
	}
	if err := p.client.Publish(ctx, ChannelFor(table), payload).Err(); err != nil {
		p.warn("publish change event", table, err)
	}
}

func (p *Publisher) warn(msg, table string, err error) {
	if p.logger != nil {
		p.logger.Warn(msg, slog.String("table", table), slog.Any("error", err))
	}
}

// Subscribe opens a subscription for the given tables and returns a channel
// of decoded events. The channel closes when ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, logger *slog.Logger, tables ...string) <-chan Change {
	channels := make([]string, 0, len(tables))
	for _, t := range tables {
		channels = append(channels, ChannelFor(t))
	}
	sub := client.Subscribe(ctx, channels...)
	out := make(chan Change)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		src := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-src:
				if !ok {
					return
				}
				var change Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					if logger != nil {
						logger.Warn("decode change event", slog.Any("error", err))
					}
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
