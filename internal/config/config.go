// Package config provides configuration management using Viper
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Chat providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DatabaseFile is the name of the analytics database inside the data directory.
const DatabaseFile = "analytics.db"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	SiteDomain  string   `mapstructure:"sitedomain"`
	CORSOrigins string   `mapstructure:"corsorigins"`

	// File paths
	DataDirectory   string `mapstructure:"datadir"`
	DatabaseName    string `mapstructure:"-"` // Derived from DataDirectory
	StaticDirectory string `mapstructure:"staticdir"`
	ImageDirectory  string `mapstructure:"imagedir"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Analytics
	SessionTimeoutSeconds int    `mapstructure:"sessiontimeoutseconds"`
	FingerprintSecret     string `mapstructure:"fingerprintsecret"`
	MetricsEnabled        bool   `mapstructure:"metricsenabled"`

	// Admin dashboard
	AdminPassword     string `mapstructure:"adminpassword"`
	AdminPasswordHash string `mapstructure:"adminpasswordhash"`
	AdminSessionHours int    `mapstructure:"adminsessionhours"`

	// Geo lookups
	GeoDBPath      string `mapstructure:"geodbpath"`
	GeoAPIURL      string `mapstructure:"geoapiurl"`
	GeoTimeoutMs   int    `mapstructure:"geotimeoutms"`
	GeoWorkerCount int    `mapstructure:"geoworkers"`

	// Ava chat
	AvaProvider     string `mapstructure:"avaprovider"`
	AvaModel        string `mapstructure:"avamodel"`
	GeminiAPIKey    string `mapstructure:"geminiapikey"`
	AnthropicAPIKey string `mapstructure:"anthropicapikey"`

	// GitHub repository cards
	GitHubRepos  string `mapstructure:"githubrepos"`
	GitHubAPIURL string `mapstructure:"githubapiurl"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env file is the normal case in containers.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("appname", "portfolio")
		v.SetDefault("appport", "9575")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelInfo))
		v.SetDefault("sitedomain", "neverdecel")
		v.SetDefault("corsorigins", "https://neverdecel.com,http://localhost:9575")
		v.SetDefault("datadir", "data")
		v.SetDefault("staticdir", "")
		v.SetDefault("imagedir", "image")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("fingerprintsecret", "")
		v.SetDefault("metricsenabled", true)
		v.SetDefault("adminpassword", "")
		v.SetDefault("adminpasswordhash", "")
		v.SetDefault("adminsessionhours", 24)
		v.SetDefault("geodbpath", "")
		v.SetDefault("geoapiurl", "http://ip-api.com/json/")
		v.SetDefault("geotimeoutms", 2000)
		v.SetDefault("geoworkers", 2)
		v.SetDefault("avaprovider", ProviderGemini)
		v.SetDefault("avamodel", "")
		v.SetDefault("geminiapikey", "")
		v.SetDefault("anthropicapikey", "")
		v.SetDefault("githubrepos", "")
		v.SetDefault("githubapiurl", "https://api.github.com")

		// The first name wins; the unprefixed ones are kept for existing deployments.
		v.BindEnv("appname", "PORTFOLIO_APP_NAME")
		v.BindEnv("appport", "PORTFOLIO_PORT", "PORT")
		v.BindEnv("environment", "PORTFOLIO_ENV", "ENVIRONMENT")
		v.BindEnv("loglevel", "PORTFOLIO_LOG_LEVEL", "LOG_LEVEL")
		v.BindEnv("sitedomain", "PORTFOLIO_SITE_DOMAIN")
		v.BindEnv("corsorigins", "PORTFOLIO_CORS_ORIGINS")
		v.BindEnv("datadir", "PORTFOLIO_DATA_DIR")
		v.BindEnv("staticdir", "PORTFOLIO_STATIC_DIR")
		v.BindEnv("imagedir", "PORTFOLIO_IMAGE_DIR")
		v.BindEnv("logsdir", "PORTFOLIO_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PORTFOLIO_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PORTFOLIO_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PORTFOLIO_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "PORTFOLIO_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "PORTFOLIO_DB_MAX_IDLE_CONNS")
		v.BindEnv("sessiontimeoutseconds", "PORTFOLIO_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("fingerprintsecret", "PORTFOLIO_FINGERPRINT_SECRET")
		v.BindEnv("metricsenabled", "PORTFOLIO_METRICS_ENABLED")
		v.BindEnv("adminpassword", "PORTFOLIO_ADMIN_PASSWORD", "ANALYTICS_PASSWORD")
		v.BindEnv("adminpasswordhash", "PORTFOLIO_ADMIN_PASSWORD_HASH")
		v.BindEnv("adminsessionhours", "PORTFOLIO_ADMIN_SESSION_HOURS")
		v.BindEnv("geodbpath", "PORTFOLIO_GEO_DB_PATH")
		v.BindEnv("geoapiurl", "PORTFOLIO_GEO_API_URL")
		v.BindEnv("geotimeoutms", "PORTFOLIO_GEO_TIMEOUT_MS")
		v.BindEnv("geoworkers", "PORTFOLIO_GEO_WORKERS")
		v.BindEnv("avaprovider", "PORTFOLIO_AVA_PROVIDER")
		v.BindEnv("avamodel", "PORTFOLIO_AVA_MODEL")
		v.BindEnv("geminiapikey", "GEMINI_API_KEY")
		v.BindEnv("anthropicapikey", "ANTHROPIC_API_KEY")
		v.BindEnv("githubrepos", "PORTFOLIO_GITHUB_REPOS")
		v.BindEnv("githubapiurl", "PORTFOLIO_GITHUB_API_URL")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.FingerprintSecret == "" {
			cfg.FingerprintSecret = randomSecret()
		}

		if cfg.IsProduction() && !cfg.HasAdminPassword() {
			log.Fatal("Production requires PORTFOLIO_ADMIN_PASSWORD (or ANALYTICS_PASSWORD)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validProviders := map[string]bool{
		ProviderGemini:    true,
		ProviderAnthropic: true,
	}
	if !validProviders[c.AvaProvider] {
		return fmt.Errorf("invalid ava provider: %s", c.AvaProvider)
	}

	if c.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be positive, got %d", c.SessionTimeoutSeconds)
	}
	if c.AdminSessionHours <= 0 {
		return fmt.Errorf("admin session hours must be positive, got %d", c.AdminSessionHours)
	}

	return nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("config: failed to generate fingerprint secret: %v", err)
	}
	return hex.EncodeToString(buf)
}

// GetDatabasePath returns the analytics database file inside the data directory
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DataDirectory, DatabaseFile)
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port.
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the directory served under GetAssetsPrefix.
func (c *Config) GetPublicDirectory() string {
	return c.StaticDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets.
func (c *Config) GetAssetsPrefix() string {
	return "/static"
}

// GetAppName returns the application name.
func (c *Config) GetAppName() string {
	return c.AppName
}

// HasAdminPassword reports whether dashboard login is possible at all.
func (c *Config) HasAdminPassword() bool {
	return c.AdminPassword != "" || c.AdminPasswordHash != ""
}

// SessionWindow is the visitor inactivity gap that closes a session.
func (c *Config) SessionWindow() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// AdminSessionTTL is how long a dashboard login stays valid.
func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.AdminSessionHours) * time.Hour
}

// GeoTimeout bounds a single remote geo lookup.
func (c *Config) GeoTimeout() time.Duration {
	return time.Duration(c.GeoTimeoutMs) * time.Millisecond
}

// AllowedOrigins returns the CORS origins as a comma separated list without blanks.
func (c *Config) AllowedOrigins() string {
	return strings.Join(SplitList(c.CORSOrigins), ",")
}

// Repositories returns the owner/repo pairs shown on the landing page.
func (c *Config) Repositories() []string {
	return SplitList(c.GitHubRepos)
}

// ChatAPIKey returns the key for the configured chat provider.
func (c *Config) ChatAPIKey() string {
	if c.AvaProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.GeminiAPIKey
}

// SplitList splits a comma separated setting, dropping empty items.
func SplitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1
// - Development/Production: 4 (dashboard queries run in parallel)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1
	}

	return 4
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1
	}

	return 2
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
