package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"introchat/pkg/logger"
)

// RedisBroker implements Broker over Redis pub/sub so multiple server
// nodes can fan events out to their own websocket clients. Same contract
// as the in-process Hub: best-effort, at-most-once-ish, nothing replayed.
type RedisBroker struct {
	rdb *redis.Client
	ctx context.Context
}

// NewRedisBroker wraps an existing client. The context bounds the
// lifetime of all subscriptions.
func NewRedisBroker(ctx context.Context, rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, ctx: ctx}
}

// Publish marshals e and publishes it on the Redis channel named topic.
// Failures are logged and swallowed; publication is not part of any
// operation's success contract.
func (b *RedisBroker) Publish(topic string, e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		logger.Error("redis_publish_marshal_failed", "topic", topic, "error", err)
		return
	}
	if err := b.rdb.Publish(b.ctx, topic, payload).Err(); err != nil {
		logger.Warn("redis_publish_failed", "topic", topic, "error", err)
	}
}

// Subscribe opens a Redis subscription for topic and adapts it to an
// Event channel. Undecodable payloads are skipped.
func (b *RedisBroker) Subscribe(topic string) (<-chan Event, func()) {
	sub := b.rdb.Subscribe(b.ctx, topic)
	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				logger.Warn("redis_event_decode_failed", "topic", topic, "error", err)
				continue
			}
			select {
			case out <- e:
			default:
				logger.Warn("subscriber_dropped_event", "topic", topic, "type", e.Type)
			}
		}
	}()
	cancel := func() { _ = sub.Close() }
	return out, cancel
}
