package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app  *fiber.App
	addr string
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(ctx context.Context, deps routes.Deps) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               deps.Cfg.AppName,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          middleware.ErrorHandler(deps.Logger),
		DisableStartupMessage: !deps.Cfg.IsDevelopment(),
	})

	if err := routes.Setup(ctx, app, deps); err != nil {
		return nil, err
	}

	return &Server{app: app, addr: deps.Cfg.Address()}, nil
}

// App exposes the Fiber application, mainly for in-process tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
