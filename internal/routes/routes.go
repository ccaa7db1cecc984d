package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/custody"
	"github.com/congo-pay/custody/internal/deposit"
	"github.com/congo-pay/custody/internal/identity"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/price"
)

// Deps aggregates shared dependencies required to wire routes. DB, Cache
// and NATS are optional in development; memory stores stand in for them.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	NATS   *nats.Conn
	Sink   notification.Sink
	Logger *slog.Logger
	Clock  custody.Clock
}

// Setup configures middlewares, builds the services and registers every
// application route.
func Setup(ctx context.Context, app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Sink == nil {
		d.Sink = notification.NewLoggerSink(d.Logger)
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.LogFormat == "text" {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	// Services and handlers
	assets, err := buildAssets(ctx, d)
	if err != nil {
		return err
	}

	var (
		ledgerBackend ledger.Ledger
		ownerStore    custody.OwnerStore
		identityRepo  identity.Repository
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		ownerStore = custody.NewPostgresOwnerStore(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
		ownerStore = custody.NewMemoryOwnerStore()
		identityRepo = identity.NewMemoryRepository()
	}

	identitySvc := identity.NewService(identityRepo)
	for principal, hash := range d.Cfg.APICredentials {
		if err := identitySvc.Seed(ctx, commonAddress(principal), hash); err != nil {
			return err
		}
	}

	engine, err := custody.NewEngine(ctx, custody.Deps{
		Custody:        d.Cfg.Custody(),
		Assets:         assets,
		Ledger:         ledgerBackend,
		Owners:         ownerStore,
		Sink:           d.Sink,
		Clock:          d.Clock,
		Logger:         d.Logger,
		InitialOwners:  d.Cfg.Owners(),
		AdapterTimeout: d.Cfg.AdapterTimeout,
		StoreTimeout:   d.Cfg.StoreTimeout,
		NoteMaxLength:  d.Cfg.NoteMaxLength,
	})
	if err != nil {
		return err
	}

	quotes, err := price.NewStatic(d.Cfg.PriceCurrency, d.Cfg.Prices)
	if err != nil {
		return err
	}

	custodyHandler := custody.NewHandler(engine, assets, quotes)
	identityHandler := identity.NewHandler(identitySvc)
	priceHandler := price.NewHandler(quotes)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	auth := middleware.PrincipalAuth(identitySvc, d.Logger)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	sendLimit := middleware.PrincipalRateLimit(d.Cache, "send", d.Cfg.SendRateLimitPerMinute, d.Logger)

	RegisterCustodyRoutes(api, custodyHandler, auth, idempotent, sendLimit)
	RegisterIdentityRoutes(api, identityHandler, auth)
	RegisterPriceRoutes(api, priceHandler)

	if d.Cfg.IsDevelopment() {
		depositSvc, err := deposit.NewService(assets, engine.Address(), d.Sink, d.Logger)
		if err != nil {
			return err
		}
		RegisterDepositRoutes(api, deposit.NewHandler(depositSvc), idempotent)
	}

	d.Logger.Info("routes ready",
		slog.String("custody", engine.Address().Hex()),
		slog.Int("owners", engine.OwnerCount()),
		slog.Int("tokens", len(assets.Tokens())),
		slog.Bool("postgres", d.DB != nil),
		slog.Bool("redis", d.Cache != nil),
		slog.Bool("nats", d.NATS != nil),
	)
	return nil
}
