// Package redis opens the Redis connection used by the notification queue.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures NewClient.
type Options struct {
	Addr           string
	Password       string
	DB             int
	ConnectRetries int
}

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity, retrying the
// first ping.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	tries := opts.ConnectRetries
	if tries <= 0 {
		tries = 1
	}
	err := retry.NewRetrier(tries, 250*time.Millisecond, 2*time.Second).Run(func() error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", opts.Addr))
	return &Client{Client: rdb, logger: logger}, nil
}
