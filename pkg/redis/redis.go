package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return client, nil
}
