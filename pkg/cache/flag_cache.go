// Package cache provides a Redis-backed read-through cache for feature
// flags. A nil Redis client disables caching entirely, so callers never
// branch on whether Redis is configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/models"
)

const flagKeyPrefix = "flag:key:"

// FlagCache caches feature flags by key. Misses and Redis failures both
// fall through to the database; the cache is an optimization, never a
// source of truth.
type FlagCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewFlagCache creates a flag cache. A nil client or a non-positive ttl
// disables the cache: every entry must expire, so a zero TTL never reaches
// Redis as "keep forever".
func NewFlagCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *FlagCache {
	if ttl <= 0 {
		client = nil
	}
	return &FlagCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("flag-cache"),
	}
}

// Get returns the cached flag for a key, or nil, nil on a miss. Redis
// errors are logged and reported as misses.
func (c *FlagCache) Get(ctx context.Context, key string) (*models.FeatureFlag, error) {
	if c.client == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, flagKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		c.logger.Warn("flag cache read failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}

	var flag models.FeatureFlag
	if err := json.Unmarshal(data, &flag); err != nil {
		// Stale or corrupt entry; drop it and treat as a miss.
		c.client.Del(ctx, flagKeyPrefix+key)
		return nil, nil
	}

	return &flag, nil
}

// Set stores a flag under its key with the configured TTL.
func (c *FlagCache) Set(ctx context.Context, flag *models.FeatureFlag) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(flag)
	if err != nil {
		return fmt.Errorf("failed to marshal flag for cache: %w", err)
	}

	if err := c.client.Set(ctx, flagKeyPrefix+flag.Key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("flag cache write failed", zap.String("key", flag.Key), zap.Error(err))
	}

	return nil
}

// Invalidate removes the cached entry for a flag key. Called on every flag
// mutation so readers never serve a stale enabled state beyond the TTL.
func (c *FlagCache) Invalidate(ctx context.Context, key string) error {
	if c.client == nil {
		return nil
	}

	if err := c.client.Del(ctx, flagKeyPrefix+key).Err(); err != nil {
		c.logger.Warn("flag cache invalidation failed", zap.String("key", key), zap.Error(err))
	}

	return nil
}
