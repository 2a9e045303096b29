// Package config provides centralized configuration loaded from environment
// variables. Shared by every rocketpush subcommand.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// --------------------------------------------------------------------------
// Store drivers
// --------------------------------------------------------------------------

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Firebase service account (messaging gateway credentials).
	// Checked by RequireMessaging; read-only commands run without them.
	FirebaseProjectID   string `envconfig:"FB_PROJECT_ID"`
	FirebaseClientEmail string `envconfig:"FB_CLIENT_EMAIL"`
	FirebasePrivateKey  string `envconfig:"FB_PRIVATE_KEY"`

	// Store. For the sqlite driver DATABASE_URL is a file path.
	DatabaseURL    string        `envconfig:"DATABASE_URL" required:"true"`
	StoreDriver    string        `envconfig:"STORE_DRIVER" default:"postgres"` // postgres|sqlite
	DBPoolMinConns int           `envconfig:"DB_POOL_MIN_CONNS" default:"1"`
	DBPoolMaxConns int           `envconfig:"DB_POOL_MAX_CONNS" default:"10"`
	DBPoolMaxLife  time.Duration `envconfig:"DB_POOL_MAX_LIFE" default:"30m"`

	// Schedule source
	ScheduleURL           string `envconfig:"SCHEDULE_URL" default:"http://api.rbtv.rodney.io/api/1.0/schedule/schedule_linear.json"`
	ScheduleRatePerMinute int    `envconfig:"SCHEDULE_RATE_PER_MINUTE" default:"30"`

	// Trigger
	CronSpec     string `envconfig:"CRON_SPEC" default:"0 */10 * * * *"`
	CronTimezone string `envconfig:"CRON_TIMEZONE" default:"Europe/Berlin"`
	AllowOverlap bool   `envconfig:"ALLOW_OVERLAP" default:"false"`

	// Pipeline
	NotifyWindow time.Duration `envconfig:"NOTIFY_WINDOW" default:"10m"`
	FanOutLimit  int           `envconfig:"FANOUT_LIMIT" default:"8"`
	CallTimeout  time.Duration `envconfig:"CALL_TIMEOUT" default:"15s"`
	CycleTimeout time.Duration `envconfig:"CYCLE_TIMEOUT" default:"5m"`

	// Notification content
	IconURL       string `envconfig:"ICON_URL" default:"https://rocketpush.de/images/icon-192x192.png"`
	SiteURL       string `envconfig:"SITE_URL" default:"https://rocketpush.de"`
	BroadcastLink string `envconfig:"BROADCAST_LINK" default:"https://www.rocketbeans.tv/?utm_source=https%3A%2F%2Frocketpush.de"`

	// Maintenance
	MarkerRetention time.Duration `envconfig:"MARKER_RETENTION" default:"720h"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"30m"`

	// Status API
	APIHost           string        `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort           int           `envconfig:"API_PORT" default:"8000"`
	CORSAllowOrigins  []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
	RateLimitEnabled  bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"100"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
	CacheEnabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
}

// Load reads a .env file if present, then configuration from environment
// variables. Missing required values are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// Keys pasted into a single env line carry escaped newlines.
	cfg.FirebasePrivateKey = strings.ReplaceAll(cfg.FirebasePrivateKey, `\n`, "\n")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.StoreDriver)
	}
	if c.FanOutLimit < 1 {
		return fmt.Errorf("FANOUT_LIMIT must be at least 1, got %d", c.FanOutLimit)
	}
	if c.NotifyWindow <= 0 {
		return fmt.Errorf("NOTIFY_WINDOW must be positive, got %s", c.NotifyWindow)
	}
	if _, err := time.LoadLocation(c.CronTimezone); err != nil {
		return fmt.Errorf("CRON_TIMEZONE: %w", err)
	}
	return nil
}

// RequireMessaging reports missing Firebase credentials.
func (c *Config) RequireMessaging() error {
	var missing []string
	if c.FirebaseProjectID == "" {
		missing = append(missing, "FB_PROJECT_ID")
	}
	if c.FirebaseClientEmail == "" {
		missing = append(missing, "FB_CLIENT_EMAIL")
	}
	if c.FirebasePrivateKey == "" {
		missing = append(missing, "FB_PRIVATE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Location returns the trigger time zone. Validated by Load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.CronTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// APIAddr returns the listen address for the status API.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}
