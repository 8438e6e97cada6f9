// Package app wires configuration, the record store, services, and the HTTP
// transport into a runnable server with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"keyserve/internal/config"
	"keyserve/internal/infrastructure"
	"keyserve/internal/license"
	customMiddleware "keyserve/internal/middleware"
	"keyserve/internal/services"
	"keyserve/internal/store"
	handlers "keyserve/internal/transport/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Application is the dependency container for the license server.
type Application struct {
	Config         *config.Config
	Router         *chi.Mux
	Server         *http.Server
	Store          license.Store
	LicenseService services.LicenseService
	AdminService   services.AdminService
	Logger         *slog.Logger

	telemetry  *infrastructure.Telemetry
	mongoStore *store.MongoStore
}

// New builds the application: config, logger, telemetry, store, services,
// router. The store connection is acquired here and released in Shutdown.
func New(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("service", infrastructure.ServiceName),
		slog.String("version", Version),
		slog.Int("port", cfg.Server.Port),
	)

	telemetry, err := infrastructure.InitTelemetry(cfg.Telemetry.TracingEnabled, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	mongoStore, err := store.NewMongoStore(ctx, store.MongoConfig{
		URI:                    cfg.Mongo.URI,
		Database:               cfg.Mongo.Database,
		Collection:             cfg.Mongo.Collection,
		MaxPoolSize:            cfg.Mongo.MaxPoolSize,
		ServerSelectionTimeout: cfg.Mongo.ServerSelectionTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect license store: %w", err)
	}

	app := &Application{
		Config:     cfg,
		Store:      mongoStore,
		Logger:     logger,
		telemetry:  telemetry,
		mongoStore: mongoStore,
	}

	engine := license.NewEngine(mongoStore, logger)
	app.LicenseService = services.NewLicenseService(engine, logger)
	app.AdminService = services.NewAdminService(mongoStore, logger)

	app.Router = app.buildRouter()
	app.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.Router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return app, nil
}

func (app *Application) buildRouter() *chi.Mux {
	cfg := app.Config
	logger := app.Logger

	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(logger))
	r.Use(customMiddleware.Recoverer(logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		AllowedOrigins: cfg.Security.AllowedOrigins,
	}))
	if cfg.Security.RateLimit.Enabled {
		limiter := customMiddleware.NewRateLimiter(
			cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst, logger)
		r.Use(limiter.Handler)
	}
	r.Use(customMiddleware.Timeout(30 * time.Second))

	licenseHandler := handlers.NewLicenseHandler(app.LicenseService, logger)
	adminHandler := handlers.NewAdminHandler(app.AdminService, logger)
	healthHandler := handlers.NewHealthHandler(app.Store, logger)

	r.Mount("/api/licenses", licenseHandler.Routes())

	adminAuth := customMiddleware.AdminAuth(customMiddleware.AdminAuthConfig{
		Username:   cfg.Security.AdminUsername,
		Secret:     cfg.Security.AdminSecret,
		SecretHash: cfg.Security.AdminSecretHash,
		Logger:     logger,
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminAuth)
		r.Mount("/", adminHandler.Routes())
	})

	r.Get("/healthz", healthHandler.Health)

	// Static admin panel, gated behind the same credentials. The UI assets
	// are deployment-provided; nothing in the server depends on them.
	if cfg.Server.WebDir != "" {
		fileServer := http.StripPrefix("/panel", http.FileServer(http.Dir(cfg.Server.WebDir)))
		r.Route("/panel", func(r chi.Router) {
			r.Use(adminAuth)
			r.Handle("/*", fileServer)
		})
	}

	return r
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then shuts
// down gracefully within the configured timeout.
func (app *Application) Run() error {
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("license server listening", slog.String("addr", app.Server.Addr))
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		app.Logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownTimeout)
	defer cancel()
	return app.Shutdown(ctx)
}

// Shutdown stops the HTTP server, flushes telemetry, and releases the store
// connection.
func (app *Application) Shutdown(ctx context.Context) error {
	if err := app.Server.Shutdown(ctx); err != nil {
		app.Logger.Error("http server shutdown failed", slog.String("error", err.Error()))
	}

	if err := app.telemetry.Shutdown(ctx); err != nil {
		app.Logger.Error("telemetry shutdown failed", slog.String("error", err.Error()))
	}

	if app.mongoStore != nil {
		if err := app.mongoStore.Close(ctx); err != nil {
			app.Logger.Error("store close failed", slog.String("error", err.Error()))
			return err
		}
	}

	app.Logger.Info("shutdown complete")
	return nil
}
