package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/projectx/internal/auth/challenge"
	"github.com/aussiebroadwan/projectx/internal/auth/guard"
	httpapi "github.com/aussiebroadwan/projectx/internal/auth/http"
	"github.com/aussiebroadwan/projectx/internal/auth/notify"
	"github.com/aussiebroadwan/projectx/internal/auth/service"
	"github.com/aussiebroadwan/projectx/internal/auth/store"
	"github.com/aussiebroadwan/projectx/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/projectx/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/projectx/pkg/cryptox"
	"github.com/aussiebroadwan/projectx/pkg/jwtx"
	"github.com/aussiebroadwan/projectx/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	startupTimeout = 10 * time.Second
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	codec      *jwtx.Codec
	challenges challenge.Store
	redis      *redis.Client // nil unless CHALLENGE_STORE=redis
	notifier   notify.Notifier

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService // nil when the challenge store expires entries itself

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "projectx-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing and fail now rather than on the
	// first login if it cannot be read or created.
	cryptox.SetPepperPath(app.cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	codec, err := jwtx.NewHS256Codec([]byte(cfg.SecretKey), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initChallenges(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initNotifier()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
	}

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"database", app.cfg.DatabaseDriver,
		"challenge_store", app.cfg.ChallengeStore,
		"email_provider", app.cfg.EmailProvider,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if app.housekeepingService != nil {
		app.housekeepingService.Stop()
	}

	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
			errs = append(errs, err)
		}
	}

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("auth service stopped")
	return errors.Join(errs...)
}

// initDatabase opens the configured credential store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)

	if empty, err := db.Users().IsEmpty(ctx); err == nil && empty {
		app.logger.Info("no accounts yet, POST /auth/register to create the first one")
	}
	return nil
}

// initChallenges selects where pending 2FA codes live. The memory store needs
// the housekeeping sweep; Redis expires keys on its own.
func (app *Application) initChallenges(ctx context.Context) error {
	if app.cfg.ChallengeStore != ChallengeRedis {
		mem := challenge.NewMemoryStore(app.cfg.ChallengeTTL)
		app.challenges = mem
		app.housekeepingService = service.NewHousekeepingService(mem, app.logger, app.cfg.HousekeepingInterval)
		return nil
	}

	opts, err := redis.ParseURL(app.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	rs := challenge.NewRedisStore(client, app.cfg.RedisPrefix, app.cfg.ChallengeTTL)
	if err := rs.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to reach redis: %w", err)
	}

	app.redis = client
	app.challenges = rs
	app.logger.Info("redis challenge store connected", "addr", opts.Addr, "prefix", app.cfg.RedisPrefix)
	return nil
}

func (app *Application) initNotifier() {
	switch app.cfg.EmailProvider {
	case EmailSendGrid:
		app.notifier = notify.NewSendGridClient(app.cfg.SendGridAPIKey, app.cfg.SendGridBaseURL, app.cfg.EmailFrom)
	default:
		app.notifier = notify.LogNotifier{
			Logger:      app.logger,
			IncludeBody: !app.cfg.IsProduction(),
		}
		if app.cfg.IsProduction() {
			app.logger.Warn("EMAIL_PROVIDER=log in production: 2FA codes will not be delivered")
		}
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.userService = &service.UserService{Store: app.db}
	app.authService = &service.AuthService{
		Store:                app.db,
		Challenges:           app.challenges,
		Notifier:             app.notifier,
		Tokens:               app.codec,
		SessionTTL:           app.cfg.SessionTTL,
		ChallengeTTL:         app.cfg.ChallengeTTL,
		NotifyTimeout:        app.cfg.NotifyTimeout,
		ExposeCodesOnFailure: !app.cfg.IsProduction(),
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		guard.New(app.codec, app.userService),
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.AuthService = app.authService
	router.UserService = app.userService
	router.Cookies = httpapi.CookieConfig{
		Secure: app.cfg.IsProduction(),
		MaxAge: app.cfg.SessionTTL,
	}
	router.Limits = app.cfg.RateLimits()
	if p, ok := app.challenges.(httpapi.Pinger); ok {
		router.Challenges = p
	}
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Handler returns the fully wired HTTP handler without starting a listener.
func (app *Application) Handler() http.Handler {
	return app.router
}
