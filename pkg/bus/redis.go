package bus

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport is the cross-device adapter backed by redis pub/sub.
// Redis delivers to every subscriber of the channel including the
// publisher's own subscription; handlers are idempotent upserts so the
// echo is harmless.
type RedisTransport struct {
	rdb     *redis.Client
	channel string
	sub     *redis.PubSub
}

func NewRedisTransport(rdb *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{rdb: rdb, channel: channel}
}

func (t *RedisTransport) Publish(ctx context.Context, payload []byte) error {
	return t.rdb.Publish(ctx, t.channel, payload).Err()
}

func (t *RedisTransport) Subscribe(ctx context.Context, sink func([]byte)) error {
	t.sub = t.rdb.Subscribe(ctx, t.channel)

	// Confirm the subscription before returning so a publish immediately
	// after Start is not lost.
	if _, err := t.sub.Receive(ctx); err != nil {
		return err
	}

	go func() {
		for msg := range t.sub.Channel() {
			sink([]byte(msg.Payload))
		}
		zap.L().Info("[Bus] redis subscription closed", zap.String("channel", t.channel))
	}()

	return nil
}

func (t *RedisTransport) Close() error {
	if t.sub == nil {
		return nil
	}
	return t.sub.Close()
}
