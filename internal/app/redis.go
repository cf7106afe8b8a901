package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/guttosm/nsepulse/config"
)

// InitRedis connects the aggregate query cache.
//
// Behavior:
//   - Returns (nil, nil) when cfg.Redis.Addr is empty; caching is disabled.
//   - Pings the server once and returns the error if it is unreachable.
//     The caller decides whether to keep the client (queries fall through
//     to the database on cache errors).
func InitRedis(cfg config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("failed to ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	return client, nil
}

// redisOpener is an indirection used by InitializeApp; overridden in tests.
var redisOpener = InitRedis
