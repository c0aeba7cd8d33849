// Package cache provides the pluggable key-value backend behind the LLM
// fallback runner's fingerprint cache, ported from original_source's
// threat_modeling_shared.cache module (a CacheBackend protocol with a
// swallow-all-errors Redis implementation).
package cache

import (
	"context"
	"time"
)

// Backend is a pluggable cache backend. Get returns ("", false) for a
// missing key or any backend error; Set silently drops errors, matching
// original_source's RedisCacheBackend (a cache miss or write failure must
// never fail the caller's request, only cost a fallback re-run).
type Backend interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string, ttl time.Duration)
}

// NoopBackend is the default backend when no REDIS_URL is configured: every
// Get misses and every Set is a no-op.
type NoopBackend struct{}

func (NoopBackend) Get(context.Context, string) (string, bool)   { return "", false }
func (NoopBackend) Set(context.Context, string, string, time.Duration) {}
