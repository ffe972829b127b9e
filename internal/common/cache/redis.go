package cache

import (
	"context"
	"errors"
	"time"

	"farm-copilot/internal/common/logger"
	"farm-copilot/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

// Redis shares cache entries across replicas. Redis expires keys itself, so
// a read of an expired key is an ordinary miss.
type Redis struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     logger.Logger
}

func NewRedis(client *redis.Client, prefix string, defaultTTL time.Duration, log logger.Logger) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Redis{client: client, prefix: prefix, defaultTTL: defaultTTL, logger: log}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache read failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	r.SetWithTTL(ctx, key, value, r.defaultTTL)
}

func (r *Redis) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		r.Delete(ctx, key)
		return
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		r.logger.Warn("redis cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Warn("redis cache delete failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
