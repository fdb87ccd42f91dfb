// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"rental-process/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient backs the shared identifier cache.
type RedisClient struct {
	Client *redis.Client
}

func NewRedis(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return &RedisClient{Client: rdb}
}

func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Writable round-trips a short-lived key under namespace. A replica or a
// full instance answers PING but rejects the write.
func (c *RedisClient) Writable(ctx context.Context, namespace string) error {
	key := namespace + ":__ready"
	if err := c.Client.Set(ctx, key, "1", 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis write check: %w", err)
	}
	if err := c.Client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis write check cleanup: %w", err)
	}
	return nil
}

func (c *RedisClient) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}
