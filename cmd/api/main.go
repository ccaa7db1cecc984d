package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/infra"
	"github.com/congo-pay/custody/internal/logging"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/routes"
	"github.com/congo-pay/custody/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.OpenPostgres(ctx, cfg.DatabaseURL, infra.DefaultConnectTimeout, logger)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("DATABASE_URL not set, owners and ledger are kept in memory")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, infra.DefaultConnectTimeout, logger)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, balances are kept in memory and idempotency is disabled")
	}

	sinks := notification.Multi{notification.NewLoggerSink(logger)}
	var nc *nats.Conn
	if cfg.NATSURL != "" {
		var js jetstream.JetStream
		nc, js, err = infra.NewJetStream(ctx, infra.JetStreamConfig{
			URL:            cfg.NATSURL,
			ConnectionName: cfg.AppName,
			StreamName:     cfg.NATSStream,
			Subjects:       notification.Subjects(cfg.NATSSubjectPrefix),
			ConnectTimeout: infra.DefaultConnectTimeout,
		}, logger)
		if err != nil {
			logger.Error("connect nats", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		sinks = append(sinks, notification.NewJetStreamSink(js, cfg.NATSSubjectPrefix))
	}
	sink := notification.NewAsyncSink(sinks, cfg.NotifyWorkers, cfg.NotifyQueueSize, 5*time.Second, logger)

	srv, err := server.New(ctx, routes.Deps{
		Cfg:    cfg,
		DB:     db,
		Cache:  cache,
		NATS:   nc,
		Sink:   sink,
		Logger: logger,
	})
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		sink.Close()
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	// Drain pending notifications before the NATS connection closes.
	sink.Close()

	logger.Info("server exited cleanly")
}
