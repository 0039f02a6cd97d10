package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Megalodon69/Skyblock-Bazaar-Flippidy-Backup/internal/domain"
)

// streamMaxLen caps the event stream via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// EventBus publishes engine events as JSON on a pub/sub channel and appends
// them to a capped stream for consumers that were not listening.
type EventBus struct {
	rdb     *redis.Client
	channel string
	stream  string
}

// NewEventBus creates an EventBus. An empty stream disables the stream copy.
func NewEventBus(c *Client, channel, stream string) *EventBus {
	return &EventBus{rdb: c.Underlying(), channel: channel, stream: stream}
}

// PublishEvent implements domain.EventPublisher.
func (b *EventBus) PublishEvent(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", b.channel, err)
	}
	if b.stream == "" {
		return nil
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"kind": string(ev.Kind), "payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", b.stream, err)
	}
	return nil
}

// Subscribe returns raw event payloads published on the bus channel until
// ctx is cancelled.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", b.channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ domain.EventPublisher = (*EventBus)(nil)
