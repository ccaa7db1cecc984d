package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"
)

// AsyncSink hands events to a worker pool so slow sinks never hold up the
// caller. With a single worker events are delivered in emission order.
type AsyncSink struct {
	next    Sink
	pool    pond.Pool
	timeout time.Duration
	logger  *slog.Logger
}

// NewAsyncSink wraps next with a pool of the given size. Each delivery gets
// its own context bounded by timeout.
func NewAsyncSink(next Sink, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	opts := []pond.Option{}
	if queueSize > 0 {
		opts = append(opts, pond.WithQueueSize(queueSize))
	}
	return &AsyncSink{
		next:    next,
		pool:    pond.NewPool(workers, opts...),
		timeout: timeout,
		logger:  logger,
	}
}

// Emit queues the event and returns immediately.
func (s *AsyncSink) Emit(_ context.Context, event Event) error {
	s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.next.Emit(ctx, event); err != nil {
			s.logger.Error("deliver notification",
				slog.String("event_id", event.ID),
				slog.String("kind", string(event.Kind)),
				slog.Any("error", err))
		}
	})
	return nil
}

// Close waits for queued events to be delivered.
func (s *AsyncSink) Close() {
	s.pool.StopAndWait()
	s.logger.Info("notification pool stopped",
		slog.Uint64("submitted", s.pool.SubmittedTasks()),
		slog.Uint64("failed", s.pool.FailedTasks()))
}
