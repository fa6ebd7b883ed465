package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cabnet/internal/events"
)

// DefaultEventPrefix namespaces event channels in Redis.
const DefaultEventPrefix = "cabnet:events:"

// EventBus publishes lifecycle events over Redis pub/sub and lets the
// realtime hub of every process subscribe to them.
type EventBus struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewEventBus creates a new EventBus. An empty prefix uses DefaultEventPrefix.
func NewEventBus(client *redis.Client, prefix string, logger *slog.Logger) *EventBus {
	if prefix == "" {
		prefix = DefaultEventPrefix
	}
	return &EventBus{client: client, prefix: prefix, logger: logger}
}

// Publish implements events.Publisher.
func (b *EventBus) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := json.Marshal(events.Envelope{
		Channel:    channel,
		Event:      event,
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	if err := b.client.Publish(ctx, b.prefix+channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", event, channel, err)
	}
	return nil
}

// Subscribe delivers every event published under the prefix to handle until
// ctx is cancelled. Malformed messages are logged and skipped.
func (b *EventBus) Subscribe(ctx context.Context, handle func(events.Envelope, []byte)) error {
	sub := b.client.PSubscribe(ctx, b.prefix+"*")
	defer sub.Close()

	// Wait for the subscription to be confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env events.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			if env.Channel == "" {
				env.Channel = strings.TrimPrefix(msg.Channel, b.prefix)
			}
			handle(env, []byte(msg.Payload))
		}
	}
}
