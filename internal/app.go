// Package internal contains core application functionality
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"portfolio/internal/admin"
	"portfolio/internal/ava"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/github"
	"portfolio/internal/jobs"
	"portfolio/internal/pkg/geoip"
)

// Application owns every long-lived component of the site.
type Application struct {
	Config    *config.Config
	Logger    *slog.Logger
	DBManager *database.DBManager
	Server    *fiber.App

	auth      *admin.Authenticator
	resolver  *geoip.Resolver
	enricher  *geoip.Enricher
	scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	writer := dbManager.Writer()

	local, err := geoip.OpenLocal(cfg.GeoDBPath, logger)
	if err != nil {
		logger.Warn("GeoLite2 database unavailable, using remote lookups only", slog.Any("error", err))
		local = nil
	}
	resolverOpts := geoip.Options{Local: local, Timeout: cfg.GeoTimeout()}
	if cfg.GeoAPIURL != "" {
		resolverOpts.Remote = geoip.NewRemote(cfg.GeoAPIURL, cfg.GeoTimeout(), logger)
	}
	resolver, err := geoip.NewResolver(resolverOpts, logger)
	if err != nil {
		return nil, err
	}
	enricher := geoip.NewEnricher(resolver, cfg.GeoWorkerCount, geoip.DefaultQueueSize, logger)

	provider, err := ava.NewProvider(context.Background(), ava.ProviderConfig{
		Name:   cfg.AvaProvider,
		APIKey: cfg.ChatAPIKey(),
		Model:  cfg.AvaModel,
	}, logger)
	if err != nil {
		logger.Error("Failed to create AI provider, Ava will use fallback responses", slog.Any("error", err))
		provider = nil
	}

	auth, err := NewAuthenticator(cfg, writer, nil, logger)
	if err != nil {
		return nil, err
	}

	server, err := NewServer(Dependencies{
		Config:   cfg,
		Logger:   logger,
		Writer:   writer,
		Auth:     auth,
		Resolver: resolver,
		Enricher: enricher,
		Provider: provider,
		GitHub:   github.NewClient(cfg.GitHubAPIURL, logger),
	})
	if err != nil {
		return nil, err
	}

	scheduler := jobs.NewScheduler(logger)
	cleanup := jobs.NewAdminCleanupJob(auth, logger)
	if err := scheduler.Add(jobs.AdminCleanupSpec, cleanup); err != nil {
		return nil, err
	}
	if err := scheduler.Add(jobs.CheckpointSpec, jobs.NewCheckpointJob(dbManager, logger)); err != nil {
		return nil, err
	}
	scheduler.RunOnStart(cleanup)

	return &Application{
		Config:    cfg,
		Logger:    logger,
		DBManager: dbManager,
		Server:    server,
		auth:      auth,
		resolver:  resolver,
		enricher:  enricher,
		scheduler: scheduler,
	}, nil
}

// Start starts the background jobs and serves HTTP until the listener is
// closed by Shutdown.
func (a *Application) Start() error {
	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := ":" + a.Config.GetPort()
	a.Logger.Info("Starting server",
		slog.String("address", addr),
		slog.String("environment", a.Config.Environment))
	return a.Server.Listen(addr)
}

// Shutdown stops accepting requests, drains the geo queue, stops the jobs and
// closes the database, in that order.
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.Server.ShutdownWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	a.enricher.Close()
	a.scheduler.Stop()
	a.resolver.Close()
	if err := a.DBManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	a.Logger.Info("Shutdown complete")
	return errors.Join(errs...)
}
