// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"farm-copilot/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// NewRedis builds the client backing the shared cache. It does not dial;
// call PingRedis to verify connectivity.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

func PingRedis(ctx context.Context, rdb *redis.Client) error {
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
