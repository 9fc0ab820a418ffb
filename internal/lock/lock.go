// Package lock provides a cross-process mutual exclusion primitive backed
// by a shared Redis key space. Keys carry a finite TTL so that locks leaked
// by crashed holders become acquirable again without cleanup logic.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock coordinates exclusive access to a key across all service
// instances sharing the same Redis.
type RedisLock struct {
	client *redis.Client
}

func New(client *redis.Client) *RedisLock {
	return &RedisLock{
		client: client,
	}
}

// TryAcquire attempts to associate the key with this caller for at most ttl.
// It returns true iff the key was free. There is no fairness guarantee among
// contenders. The ttl must be finite: expiry is the sole recovery mechanism
// for locks that are never released.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "lock.RedisLock.TryAcquire"

	ok, err := l.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: failed to acquire lock: %w", op, err)
	}

	return ok, nil
}

// Release removes the key. Releasing a key that is not held (already expired
// or never acquired) succeeds and returns false.
func (l *RedisLock) Release(ctx context.Context, key string) (bool, error) {
	const op = "lock.RedisLock.Release"

	removed, err := l.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%s: failed to release lock: %w", op, err)
	}

	return removed > 0, nil
}
