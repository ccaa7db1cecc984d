package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient configures a Redis client and waits until it answers a
// ping or timeout elapses.
func NewRedisClient(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = "custody"
	}

	client := redis.NewClient(opt)
	if err := retryConnect(ctx, "redis", timeout, logger, func() error { return client.Ping(ctx).Err() }); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
