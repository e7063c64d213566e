package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore persists client values in Redis under a key prefix, so
// several terminals on one machine can share a device identity.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewRedisStore creates a Redis-backed store. No connection is made until
// Ping or the first operation.
func NewRedisStore(cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RedisStore{
		client:  redis.NewClient(opts),
		prefix:  cfg.Prefix,
		timeout: timeout,
		logger:  logger.With().Str("component", "redis-store").Logger(),
	}, nil
}

// Ping checks that Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Get returns the value stored under key. A missing key is not an error.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key without expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.Debug().Str("key", key).Msg("value stored")
	return nil
}

// Delete removes keys in one round trip.
func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close closes the Redis connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}
