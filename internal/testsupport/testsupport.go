package testsupport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"portfolio/internal"
	"portfolio/internal/admin"
	"portfolio/internal/ava"
	"portfolio/internal/config"
	"portfolio/internal/database"
	"portfolio/internal/github"
	"portfolio/internal/pkg/geoip"
	"portfolio/internal/storage"
)

const (
	// AdminPassword is the dashboard password of TestConfig.
	AdminPassword = "correct horse battery staple"

	// BrowserUA is a desktop Chrome user agent.
	BrowserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	// BotUA is Googlebot.
	BotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

// SetupTestDB creates a migrated SQLite database in the test's temp directory.
// A single connection keeps the writer and the readers on the same view of the
// data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "analytics.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("testsupport: failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})
	return db
}

// NewWriter returns a writer over a fresh test database.
func NewWriter(t *testing.T) *storage.Writer {
	t.Helper()
	return storage.NewWriter(SetupTestDB(t), GetLogger())
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// TestConfig returns a config suitable for tests. It does not read the
// environment.
func TestConfig() *config.Config {
	return &config.Config{
		AppName:               "portfolio",
		AppPort:               "0",
		Environment:           config.Test,
		LogLevel:              config.LogLevelError,
		SiteDomain:            "neverdecel",
		CORSOrigins:           "http://localhost:9575",
		SessionTimeoutSeconds: 1800,
		FingerprintSecret:     "test-fingerprint-secret",
		AdminPassword:         AdminPassword,
		AdminSessionHours:     24,
		GeoTimeoutMs:          200,
		GeoWorkerCount:        2,
		GitHubRepos:           "neverdecel/portfolio",
	}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestServerOptions tweaks NewTestServer. Zero values get test defaults.
type TestServerOptions struct {
	Config *config.Config
	Clock  *Clock
	// GeoLookup replaces the remote geo source. Nil disables geo lookups.
	GeoLookup geoip.LookupFunc
	// GeoTimeout bounds a single lookup.
	GeoTimeout time.Duration
	Provider   ava.Provider
	// GitHubURL points the GitHub client at a fake API.
	GitHubURL string
}

// TestServer is a fully wired app over a temporary database.
type TestServer struct {
	App      *fiber.App
	DB       *gorm.DB
	Writer   *storage.Writer
	Config   *config.Config
	Clock    *Clock
	Enricher *geoip.Enricher
}

// NewTestServer builds the real server with a fake clock and fake external
// services.
func NewTestServer(t *testing.T, opts TestServerOptions) *TestServer {
	t.Helper()

	cfg := opts.Config
	if cfg == nil {
		cfg = TestConfig()
	}
	clock := opts.Clock
	if clock == nil {
		clock = NewClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	}
	log := GetLogger()
	db := SetupTestDB(t)
	writer := storage.NewWriter(db, log)

	srv := &TestServer{DB: db, Writer: writer, Config: cfg, Clock: clock}

	deps := internal.Dependencies{
		Config:   cfg,
		Logger:   log,
		Writer:   writer,
		Provider: opts.Provider,
		GitHub:   github.NewClient(opts.GitHubURL, log, github.WithClock(clock.Now)),
		Now:      clock.Now,
	}

	if opts.GeoLookup != nil {
		resolver, err := geoip.NewResolver(geoip.Options{
			Remote:  opts.GeoLookup,
			Timeout: opts.GeoTimeout,
		}, log)
		require.NoError(t, err)
		enricher := geoip.NewEnricher(resolver, 2, 0, log)
		deps.Resolver = resolver
		deps.Enricher = enricher
		srv.Enricher = enricher
		t.Cleanup(func() {
			enricher.Close()
			resolver.Close()
		})
	}

	app, err := internal.NewServer(deps)
	require.NoError(t, err)
	srv.App = app
	return srv
}

// Do sends req through the app without a deadline.
func (s *TestServer) Do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", BrowserUA)
	}
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// Get requests path with the given headers.
func (s *TestServer) Get(t *testing.T, path string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.Do(t, req)
}

// PostForm posts url-encoded values.
func (s *TestServer) PostForm(t *testing.T, path string, values url.Values, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.Do(t, req)
}

// PostJSON posts a raw JSON body.
func (s *TestServer) PostJSON(t *testing.T, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.Do(t, req)
}

// Login posts the password and returns the session cookie header value.
func (s *TestServer) Login(t *testing.T, password string) string {
	t.Helper()

	resp := s.PostForm(t, "/admin/analytics/login", url.Values{"password": {password}}, nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	require.Equal(t, "/admin/analytics", resp.Header.Get("Location"))

	cookie := SessionCookie(resp)
	require.NotEmpty(t, cookie, "login did not set the session cookie")
	return cookie
}

// SessionCookie extracts the admin session cookie from a response as a
// Cookie header value.
func SessionCookie(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == admin.CookieName && c.Value != "" {
			return fmt.Sprintf("%s=%s", c.Name, c.Value)
		}
	}
	return ""
}

// ReadBody reads and closes the response body.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// DrainGeo waits until the enrichment workers have applied every queued job.
func (s *TestServer) DrainGeo() {
	if s.Enricher != nil {
		s.Enricher.Close()
	}
}

// StaticLookup answers every lookup with loc.
func StaticLookup(loc geoip.Location) geoip.LookupFunc {
	return func(context.Context, string) (geoip.Location, error) {
		return loc, nil
	}
}
