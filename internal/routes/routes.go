package routes

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/veil-auth/veil_auth/internal/anomaly"
	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/authn"
	"github.com/veil-auth/veil_auth/internal/config"
	"github.com/veil-auth/veil_auth/internal/credential"
	"github.com/veil-auth/veil_auth/internal/lock"
	"github.com/veil-auth/veil_auth/internal/middleware"
	"github.com/veil-auth/veil_auth/internal/notification"
	"github.com/veil-auth/veil_auth/internal/ratelimit"
	"github.com/veil-auth/veil_auth/internal/session"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Core holds the assembled authentication components. Built once by Setup and
// shared with main so background loops run over the same instances the
// handlers use.
type Core struct {
	Recorder *audit.Recorder
	Creds    *credential.Service
	Limiter  *ratelimit.Limiter
	Sessions *session.Manager
	Locks    *lock.Service
	Authn    *authn.Service
	Detector *anomaly.Detector
	Alerts   anomaly.AlertStore
}

// Build assembles the authentication core over the provided backends. Nil DB
// and Cache fall back to in-memory stores, which keeps local development and
// handler tests off external services.
func Build(d Deps) *Core {
	var (
		auditStore  audit.Store
		credRepo    credential.Repository
		sessRepo    session.Repository
		lockRepo    lock.Repository
		alertStore  anomaly.AlertStore
		attempts    ratelimit.AttemptStore
		policyStore ratelimit.PolicyStore
	)
	if d.DB != nil {
		auditStore = audit.NewPostgresStore(d.DB)
		credRepo = credential.NewPostgresRepository(d.DB)
		sessRepo = session.NewPostgresRepository(d.DB)
		lockRepo = lock.NewPostgresRepository(d.DB)
		alertStore = anomaly.NewPostgresAlertStore(d.DB)
		policyStore = ratelimit.NewPostgresPolicyStore(d.DB)
	} else {
		auditStore = audit.NewMemoryStore()
		credRepo = credential.NewMemoryRepository()
		sessRepo = session.NewMemoryRepository()
		lockRepo = lock.NewMemoryRepository()
		alertStore = anomaly.NewMemoryAlertStore()
		policyStore = ratelimit.NewMemoryPolicyStore()
	}
	if d.Cache != nil {
		attempts = ratelimit.NewRedisStore(d.Cache)
	} else {
		attempts = ratelimit.NewMemoryStore()
	}

	recorder := audit.NewRecorder(auditStore, d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)

	limiter := ratelimit.NewLimiter(attempts, policyStore, map[string]ratelimit.Policy{
		ratelimit.KindPIN: {
			MaxAttempts: d.Cfg.PINMaxAttempts,
			Window:      d.Cfg.PINWindow,
			Lockout:     d.Cfg.PINLockout,
		},
		ratelimit.KindBiometric: {
			MaxAttempts: d.Cfg.BiometricMaxAttempts,
			Window:      d.Cfg.BiometricWindow,
			Lockout:     d.Cfg.BiometricLockout,
		},
	})

	creds := credential.NewService(credRepo)
	sessions := session.NewManager(sessRepo, recorder, d.Cfg.SessionTimeout, d.Cfg.WarningWindow)
	locks := lock.NewService(lockRepo, recorder, notifier)
	authnSvc := authn.NewService(creds, limiter, sessions, locks, recorder)
	detector := anomaly.NewDetector(auditStore, sessRepo, alertStore, notifier, d.Logger, d.Cfg.AnomalyLookback)

	return &Core{
		Recorder: recorder,
		Creds:    creds,
		Limiter:  limiter,
		Sessions: sessions,
		Locks:    locks,
		Authn:    authnSvc,
		Detector: detector,
		Alerts:   alertStore,
	}
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps, core *Core) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")

	authHandler := authn.NewHandler(core.Authn, core.Creds)
	RegisterAuthRoutes(api, authHandler, core.Sessions)

	operator := api.Group("/operator", middleware.OperatorAuth(d.Cfg.OperatorSecret))
	if d.Cache != nil {
		operator.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	RegisterOperatorRoutes(operator, core, d.Logger)

	return nil
}
