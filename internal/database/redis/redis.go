package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ReckonAssist/internal/config"
)

// Connect creates a Redis client and verifies the connection. The handle is
// passed to consumers explicitly; there is no package-level singleton.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}
	return rdb, nil
}
