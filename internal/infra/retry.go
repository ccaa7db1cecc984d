package infra

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConnectTimeout bounds how long a dependency may take to come up.
const DefaultConnectTimeout = 30 * time.Second

// retryConnect runs op with exponential backoff until it succeeds, ctx is
// done or timeout elapses.
func retryConnect(ctx context.Context, name string, timeout time.Duration, logger *slog.Logger, op func() error) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = timeout

	notify := func(err error, wait time.Duration) {
		logger.Warn(name+" connect failed, retrying", slog.Any("error", err), slog.Duration("wait", wait))
	}
	return backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
}
