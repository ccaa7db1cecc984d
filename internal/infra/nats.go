package infra

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamConfig describes the connection and the stream events land in.
type JetStreamConfig struct {
	URL            string
	ConnectionName string
	StreamName     string
	Subjects       []string
	ConnectTimeout time.Duration
}

// NewJetStream connects to NATS, retrying with exponential backoff until
// ConnectTimeout elapses, and makes sure the event stream exists.
func NewJetStream(ctx context.Context, cfg JetStreamConfig, logger *slog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("nats url is required")
	}

	opts := []nats.Option{
		nats.Name(cfg.ConnectionName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	var nc *nats.Conn
	connect := func() error {
		conn, err := nats.Connect(cfg.URL, opts...)
		if err != nil {
			return err
		}
		nc = conn
		return nil
	}
	if err := retryConnect(ctx, "nats", cfg.ConnectTimeout, logger, connect); err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.StreamName,
		Subjects: cfg.Subjects,
	}); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}

	return nc, js, nil
}
