package internal

import (
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "portfolio/api/v1"
	"portfolio/internal/admin"
	"portfolio/internal/analytics"
	"portfolio/internal/ava"
	"portfolio/internal/config"
	"portfolio/internal/events"
	"portfolio/internal/github"
	"portfolio/internal/http"
	"portfolio/internal/http/middleware"
	"portfolio/internal/pageviews"
	"portfolio/internal/pkg/geoip"
	"portfolio/internal/sessions"
	"portfolio/internal/storage"
	"portfolio/internal/timeframe"
	"portfolio/internal/visitors"
	"portfolio/web"
)

// Dependencies are the long-lived components the HTTP server is built on.
// Resolver, Enricher, Provider and GitHub may be nil; Auth is built from the
// config when nil.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Writer   *storage.Writer
	Auth     *admin.Authenticator
	Resolver *geoip.Resolver
	Enricher *geoip.Enricher
	Provider ava.Provider
	GitHub   *github.Client
	Now      func() time.Time
}

// NewAuthenticator builds the dashboard authenticator from the configured
// password or password hash.
func NewAuthenticator(cfg *config.Config, writer *storage.Writer, now func() time.Time, logger *slog.Logger) (*admin.Authenticator, error) {
	hash, err := admin.PasswordHash(cfg.AdminPassword, cfg.AdminPasswordHash)
	if err != nil {
		return nil, err
	}
	if len(hash) == 0 {
		logger.Warn("No admin password configured, dashboard login is disabled")
	}
	return admin.NewAuthenticator(writer, admin.Options{
		PasswordHash: hash,
		SessionTTL:   cfg.AdminSessionTTL(),
		Now:          now,
	}, logger), nil
}

// NewServer wires the handlers, the tracking pipeline and the routes.
func NewServer(deps Dependencies) (*fiber.App, error) {
	cfg := deps.Config
	logger := deps.Logger
	if deps.Writer == nil {
		return nil, errors.New("server requires a database writer")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	auth := deps.Auth
	if auth == nil {
		var err error
		if auth, err = NewAuthenticator(cfg, deps.Writer, deps.Now, logger); err != nil {
			return nil, fmt.Errorf("failed to configure admin auth: %w", err)
		}
	}

	agent, err := ava.NewAgent(deps.Provider, ava.Options{}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat agent: %w", err)
	}

	ghClient := deps.GitHub
	if ghClient == nil {
		ghClient = github.NewClient(cfg.GitHubAPIURL, logger)
	}

	tracker := sessions.NewTracker(cfg.SessionWindow())
	fingerprinter := visitors.NewFingerprinter(cfg.FingerprintSecret)
	pageviewRecorder := pageviews.NewRecorder(deps.Writer, tracker)
	eventHandler := v1.NewEventHandler(events.NewRecorder(deps.Writer, tracker), fingerprinter, deps.Now, logger)

	h := http.NewHandlers(http.Options{
		Config:      cfg,
		DB:          deps.Writer.DB(),
		Auth:        auth,
		Stats:       analytics.NewService(deps.Writer.DB(), timeframe.TimeProviderFunc(deps.Now), logger),
		Agent:       agent,
		ChatLimiter: ava.NewRateLimiter(0, 0, 0, deps.Now),
		GitHub:      ghClient,
		Logger:      logger,
	})

	engine := html.NewFileSystem(nethttp.FS(web.Templates()), ".html")
	engine.AddFunc("flag", geoip.Flag)
	engine.AddFunc("dict", dict)

	app := fiber.New(fiber.Config{
		AppName:               cfg.GetAppName(),
		Views:                 engine,
		ErrorHandler:          http.ErrorHandler(logger),
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(helmet.New(helmet.Config{
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "unsafe-none",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins(),
		AllowMethods: "GET,POST",
		AllowHeaders: "Content-Type, Accept",
	}))
	// Tracking wraps recover so requests that panic are recorded as 500s.
	app.Use(middleware.Tracking(middleware.TrackingOptions{
		Recorder:      pageviewRecorder,
		Fingerprinter: fingerprinter,
		Resolver:      deps.Resolver,
		Enricher:      deps.Enricher,
		SiteDomain:    cfg.SiteDomain,
		Now:           deps.Now,
		Logger:        logger,
	}))
	app.Use(recover.New())

	// Rate limiting only in production; it would interfere with tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}
	beaconRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))
	loginRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))
	requireAdmin := middleware.RequireAdmin(auth, logger)

	// === PAGES ===
	app.Get("/", h.HomeIndexAction)
	app.Get("/health", h.HealthAction)
	app.Head("/health", h.HealthAction)

	if dir := cfg.GetPublicDirectory(); dir != "" {
		app.Static(cfg.GetAssetsPrefix(), dir)
	} else {
		app.Use(cfg.GetAssetsPrefix(), filesystem.New(filesystem.Config{
			Root:   nethttp.FS(web.Static()),
			MaxAge: 3600,
		}))
	}
	if cfg.ImageDirectory != "" {
		app.Static("/image", cfg.ImageDirectory)
	}

	// === SITE API ===
	app.Post("/api/ava/chat", v1.SecFetchSite(), h.ChatAction)
	app.Get("/api/github/:owner/:repo/card", h.RepoCardAction)

	if cfg.MetricsEnabled {
		app.Get("/_metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// === ANALYTICS ===
	app.Post("/admin/analytics/api/event", beaconRateLimiter, v1.SecFetchSite(), eventHandler.CreateEventAction)

	app.Get("/admin/analytics/login", h.LoginFormAction)
	app.Post("/admin/analytics/login", loginRateLimiter, h.LoginAction)
	app.Get("/admin/analytics/logout", h.LogoutAction)

	app.Get("/admin/analytics", requireAdmin, h.DashboardAction)
	app.Get("/admin/analytics/api/stats", requireAdmin, h.StatsAPIAction)
	app.Get("/admin/analytics/api/recent", requireAdmin, h.RecentAPIAction)
	app.Get("/admin/analytics/api/visitors", requireAdmin, h.VisitorsAPIAction)
	app.Get("/admin/analytics/api/visitors/:id", requireAdmin, h.VisitorDetailsAPIAction)
	app.Get("/admin/analytics/api/events/:name", requireAdmin, h.EventDetailsAPIAction)
	app.Get("/admin/analytics/api/bots", requireAdmin, h.BotsAPIAction)
	app.Get("/admin/analytics/api/clicks", requireAdmin, h.ClicksAPIAction)

	return app, nil
}

// dict builds a map from alternating keys and values for nested templates.
func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, errors.New("dict needs an even number of arguments")
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", values[i])
		}
		m[key] = values[i+1]
	}
	return m, nil
}
