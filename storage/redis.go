package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps values in Redis under a namespace prefix. Expiry is
// delegated to Redis key TTLs.
type RedisStore struct {
	client    *redis.Client
	namespace string
	nowTime   func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisNowTime sets the clock expiresAt is measured against when
// converting it to a TTL (primarily for testing)
func WithRedisNowTime(nowFunc func() time.Time) RedisOption {
	return func(r *RedisStore) {
		r.nowTime = nowFunc
	}
}

// NewRedisStore wraps an existing client. Keys are stored as "<namespace>:<key>".
func NewRedisStore(client *redis.Client, namespace string, options ...RedisOption) *RedisStore {
	r := &RedisStore{client: client, namespace: namespace, nowTime: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisStore) key(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[RedisStore.Get] %s: %w: %w", key, ErrUnavailable, err)
	}
	return value, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, expiresAt time.Time) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(r.nowTime())
		if ttl <= 0 {
			return r.Delete(ctx, key)
		}
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("[RedisStore.Set] %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("[RedisStore.Delete] %s: %w: %w", key, ErrUnavailable, err)
	}
	return nil
}
