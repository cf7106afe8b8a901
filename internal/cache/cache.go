package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every aggregate entry so Invalidate can sweep them.
const keyPrefix = "nsepulse:agg:"

// QueryCache stores JSON-encoded aggregate results keyed by operation and filter.
type QueryCache interface {
	// Get decodes the cached value for key into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	// Invalidate drops every cached aggregate; called after new records are committed.
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// RedisCache is the go-redis backed QueryCache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ QueryCache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Invalidate walks the prefix with SCAN (never KEYS) and then deletes in
// batches. Keys are collected first: deleting mid-scan can make the cursor
// skip entries.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	const batch = 100

	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", batch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan cached aggregates: %w", err)
	}

	for start := 0; start < len(keys); start += batch {
		end := min(start+batch, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("failed to delete cached aggregates: %w", err)
		}
	}
	return nil
}

// Ping checks Redis connection health
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Nop is used when no Redis address is configured: every lookup misses.
type Nop struct{}

var _ QueryCache = Nop{}

func (Nop) Get(context.Context, string, any) (bool, error) { return false, nil }
func (Nop) Set(context.Context, string, any) error         { return nil }
func (Nop) Invalidate(context.Context) error               { return nil }
func (Nop) Ping(context.Context) error                     { return nil }
