package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/veil-auth/veil_auth/internal/config"
	"github.com/veil-auth/veil_auth/internal/routes"
)

// Server wraps the Fiber application and shared dependencies.
type Server struct {
	app  *fiber.App
	cfg  config.Config
	core *routes.Core
}

// New instantiates the HTTP server, assembles the authentication core and
// delegates route wiring to routes.Setup.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger}
	core := routes.Build(deps)
	if err := routes.Setup(app, deps, core); err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, core: core}, nil
}

// Core exposes the assembled authentication components so main can run the
// session sweeper and anomaly detector over the same instances.
func (s *Server) Core() *routes.Core {
	return s.core
}

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
