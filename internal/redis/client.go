// Package redis wraps the shared Redis connection used for caching and
// advisory locks. Redis is optional; everything that uses it degrades to
// working without it.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"coursehub/internal/common/errors"
	"coursehub/internal/common/logging"
)

// Config holds Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
}

// Client wraps the go-redis client with JSON helpers and health checking.
type Client struct {
	rdb    *goredis.Client
	logger logging.Logger
}

// NewClient connects to Redis and verifies the connection.
func NewClient(config Config, logger logging.Logger) (*Client, error) {
	if config.Address == "" {
		return nil, errors.ConfigError("redis address is required")
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.ConnectionError("failed to connect to redis", err)
	}

	logger.Info("connected to redis", logging.Field{Key: "address", Value: config.Address})
	return &Client{rdb: rdb, logger: logger}, nil
}

// GetJSON loads and decodes a cached value. Returns (false, nil) on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.ConnectionError(fmt.Sprintf("failed to read key %s", key), err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, errors.InternalError(fmt.Sprintf("failed to decode cached value for %s", key), err)
	}
	return true, nil
}

// SetJSON encodes and stores a value with a TTL.
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.InternalError(fmt.Sprintf("failed to encode value for %s", key), err)
	}

	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return errors.ConnectionError(fmt.Sprintf("failed to write key %s", key), err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return errors.ConnectionError("failed to delete keys", err)
	}
	return nil
}

// Underlying exposes the go-redis client for integrations that need the
// raw connection, like the lock manager.
func (c *Client) Underlying() *goredis.Client {
	return c.rdb
}

// Health pings Redis.
func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.ConnectionError("redis health check failed", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
