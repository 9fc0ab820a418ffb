// Package cache implements the read-through cache in front of the short
// link store. The cache holds plain strings; an empty string is a valid
// cached value and marks a code known to resolve to nothing, so unknown
// codes don't cost a store round-trip on every lookup.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a read-through string cache with a fixed entry TTL.
// It carries no authority: entries are overwritten last-write-wins and
// concurrent populations for the same key are allowed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// GetOrCreate returns the cached value for key, invoking populate on a miss
// and storing its result (including the empty string) before returning it.
func (c *RedisCache) GetOrCreate(ctx context.Context, key string, populate func(ctx context.Context) (string, error)) (string, error) {
	const op = "cache.RedisCache.GetOrCreate"

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return val, nil
	}
	if err != redis.Nil {
		return "", fmt.Errorf("%s: failed to read cache: %w", op, err)
	}

	val, err = populate(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: failed to populate cache entry: %w", op, err)
	}

	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("%s: failed to write cache: %w", op, err)
	}

	return val, nil
}

// Delete evicts the entry for key. Deleting an absent key is not an error.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	const op = "cache.RedisCache.Delete"

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete cache entry: %w", op, err)
	}

	return nil
}
