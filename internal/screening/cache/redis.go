package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"screener/internal/screening/models"
)

// KeyPrefix namespaces verdict entries in a shared Redis.
const KeyPrefix = "verdict:"

// RedisCache keeps verdicts in Redis using native key expiry.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func redisKey(key models.IdentityKey) string {
	return KeyPrefix + key.String()
}

// Get returns the cached verdict for key.
func (c *RedisCache) Get(ctx context.Context, key models.IdentityKey) (models.Verdict, error) {
	data, err := c.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.Verdict{}, ErrMiss
		}
		return models.Verdict{}, fmt.Errorf("get verdict from redis: %w", err)
	}
	return decode(key, data)
}

// Set stores v under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key models.IdentityKey, v models.Verdict, ttl time.Duration) error {
	data, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if err := c.client.Set(ctx, redisKey(key), data, effectiveTTL(ttl)).Err(); err != nil {
		return fmt.Errorf("set verdict in redis: %w", err)
	}
	return nil
}

// Clear removes key's entry. Clearing an absent key is not an error.
func (c *RedisCache) Clear(ctx context.Context, key models.IdentityKey) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("clear verdict in redis: %w", err)
	}
	return nil
}

// Health pings Redis.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
