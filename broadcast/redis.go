package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var _ Channel = (*RedisChannel)(nil)

// RedisChannel uses Redis pub/sub so that tabs in different processes
// (or on different hosts sharing one Redis) can signal each other.
type RedisChannel struct {
	client    *redis.Client
	namespace string
	origin    string
	log       zerolog.Logger
}

// NewRedisChannel creates the channel of one tab. An empty origin gets a generated one.
func NewRedisChannel(client *redis.Client, namespace, origin string, log zerolog.Logger) *RedisChannel {
	if origin == "" {
		origin = NewOrigin()
	}
	return &RedisChannel{client: client, namespace: namespace, origin: origin, log: log}
}

func (c *RedisChannel) Origin() string {
	return c.origin
}

func (c *RedisChannel) topic(key string) string {
	if c.namespace == "" {
		return "broadcast:" + key
	}
	return c.namespace + ":broadcast:" + key
}

func (c *RedisChannel) Publish(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(Message{Key: key, Value: value, Origin: c.origin})
	if err != nil {
		return fmt.Errorf("[RedisChannel.Publish] encode: %w", err)
	}
	if err := c.client.Publish(ctx, c.topic(key), payload).Err(); err != nil {
		return fmt.Errorf("[RedisChannel.Publish] %s: %w", key, err)
	}
	return nil
}

// Subscribe blocks until Redis confirms the subscription, then delivers
// messages on a background goroutine until the returned function is called.
func (c *RedisChannel) Subscribe(ctx context.Context, key string, handler Handler) (func(), error) {
	ps := c.client.Subscribe(ctx, c.topic(key))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("[RedisChannel.Subscribe] %s: %w", key, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for raw := range ps.Channel() {
			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("dropping malformed broadcast")
				continue
			}
			if msg.Origin == c.origin {
				continue
			}
			handler(msg)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("closing broadcast subscription")
			}
			<-done
		})
	}, nil
}
