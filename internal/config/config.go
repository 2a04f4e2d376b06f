// Package config provides centralized configuration management for the
// row-store service. Settings come from environment variables with defaults
// and are validated on startup so misconfiguration fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Export   ExportConfig
	Security SecurityConfig
	Rate     RateLimitConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds the graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the database: postgres, sqlite or mysql (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres" oneof:"postgres|sqlite|mysql"`

	// URL is the connection string: a PostgreSQL URL, a SQLite file path or a
	// MySQL DSN. Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig holds row-store session settings.
type StoreConfig struct {
	// MaxRows caps the rows fetched into one session; 0 means unlimited (default: 5000)
	MaxRows int `env:"STORE_MAX_ROWS" default:"5000"`

	// MaxSessions caps the number of open sessions (default: 50)
	MaxSessions int `env:"STORE_MAX_SESSIONS" default:"50"`

	// SessionTTL closes sessions idle for longer than this (default: 30m)
	SessionTTL time.Duration `env:"STORE_SESSION_TTL" default:"30m"`

	// ErrorPolicy is used by Apply when the request names none:
	// abort, continue or ignore_all (default: abort)
	ErrorPolicy string `env:"STORE_ERROR_POLICY" default:"abort" oneof:"abort|continue|ignore_all"`

	// ApplyTimeout bounds a single Apply call (default: 5m)
	ApplyTimeout time.Duration `env:"STORE_APPLY_TIMEOUT" default:"5m"`

	// MaxConcurrentApplies caps batches running at once (default: 4)
	MaxConcurrentApplies int `env:"STORE_MAX_CONCURRENT_APPLIES" default:"4"`

	// ApplyWait is how long a batch waits for a free slot (default: 30s)
	ApplyWait time.Duration `env:"STORE_APPLY_WAIT" default:"30s"`
}

// ExportConfig holds settings for exporting generated SQL scripts.
type ExportConfig struct {
	// Mode selects the sink: local, s3 or memory (default: local)
	Mode string `env:"EXPORT_MODE" default:"local" oneof:"local|s3|memory"`

	// Path is the directory for local exports (default: ./scripts)
	Path string `env:"EXPORT_PATH" default:"./scripts"`

	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Region          string `env:"S3_REGION" default:"us-east-1"`
	S3Bucket          string `env:"S3_BUCKET_NAME"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication for /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" oneof:"debug|info|warn|error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" oneof:"text|json"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
