package judge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/mcpsentinel/sentinel-core/internal/errors"
)

const cacheKeyPrefix = "judge:classification:"

// Cache is the judge worker's classification cache port, backed by
// Redis in production and a miniredis instance in tests.
type Cache interface {
	Get(ctx context.Context, key string) (Result, bool, error)
	Set(ctx context.Context, key string, result Result, ttl time.Duration) error
}

// RedisCache implements Cache over go-redis/v9, matching the original
// judge service's Redis-backed classification cache.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Result, bool, error) {
	data, err := c.client.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, apperrors.Wrap(err, apperrors.ErrorTypeCacheUnavailable, "judge cache get")
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, false, apperrors.Wrap(err, apperrors.ErrorTypeCacheUnavailable, "judge cache decode")
	}
	result.CacheHit = true
	result.InferenceTimeMS = 0
	return result, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, result Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "judge cache encode")
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+key, data, ttl).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeCacheUnavailable, "judge cache set")
	}
	return nil
}
