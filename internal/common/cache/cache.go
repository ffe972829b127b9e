// Package cache provides the shared time-to-live cache placed in front of
// idempotent upstream lookups. Entries are evicted lazily by the read that
// finds them expired; nothing sweeps the store in the background.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"farm-copilot/internal/common/config"
	"farm-copilot/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL applies to Set when the cache was built without an explicit TTL.
const DefaultTTL = 300 * time.Second

// Cache is safe for concurrent use. A ttl of zero or less stores an entry that
// is already expired.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// New builds the backend selected in configuration.
func New(cfg config.CacheConfig, rdb *redis.Client, log logger.Logger) (Cache, error) {
	ttl := config.GetDuration(cfg.DefaultTTL)
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(cfg.MaxEntries, ttl)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis cache backend requires a redis client")
		}
		return NewRedis(rdb, cfg.KeyPrefix, ttl, log), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// GetJSON decodes a cached JSON value into out. Undecodable entries count as a miss.
func GetJSON(ctx context.Context, c Cache, key string, out interface{}) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// SetJSON stores v as JSON under key for ttl.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	c.SetWithTTL(ctx, key, raw, ttl)
	return nil
}
