package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the production Backend, swallowing connectivity errors
// the way original_source's RedisCacheBackend does (a broken cache must
// never fail the caller).
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend builds a backend from a redis:// URL.
func NewRedisBackend(url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool) {
	val, err := b.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return val, true
}

func (b *RedisBackend) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}
