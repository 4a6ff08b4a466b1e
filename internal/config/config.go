// Package config loads the service configuration from environment variables.
// Every value has a default except the store credentials required by the
// selected driver, and Validate reports all problems at once so a bad
// deployment fails on startup.
package config

import (
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
)

// MaxChunkSize is the per-transaction write ceiling of the supported stores.
const MaxChunkSize = 500

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so SSE progress streams are not cut off.
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Driver is one of memory, mongo, postgres.
	Driver string `env:"STORE_DRIVER" default:"memory"`

	MongoURI      string `env:"MONGO_URI" envAlt:"MONGODB_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" default:"labor_admin"`

	PostgresURL string `env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns    int    `env:"DB_MAX_CONNS" default:"10"`
	MinConns    int    `env:"DB_MIN_CONNS" default:"2"`

	ConnectTimeout time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`
}

// ImportConfig holds CSV import pipeline settings.
type ImportConfig struct {
	// ChunkSize is the number of rows committed per atomic batch.
	ChunkSize int `env:"IMPORT_CHUNK_SIZE" default:"400"`

	MaxFileSize   int64         `env:"IMPORT_MAX_FILE_SIZE" default:"10485760"`
	MaxConcurrent int           `env:"IMPORT_MAX_CONCURRENT" default:"4"`
	MaxWaitTime   time.Duration `env:"IMPORT_MAX_WAIT" default:"30s"`
	Timeout       time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// SessionTTL discards validated sessions that were never started.
	SessionTTL time.Duration `env:"IMPORT_SESSION_TTL" default:"30m"`

	// ResultTTL is how long a finished import can still be queried.
	ResultTTL time.Duration `env:"IMPORT_RESULT_TTL" default:"5m"`
}

// RateLimitConfig holds per-IP token bucket settings.
type RateLimitConfig struct {
	Enabled bool    `env:"RATE_LIMIT_ENABLED" default:"true"`
	RPS     float64 `env:"RATE_LIMIT_RPS" default:"5"`
	Burst   int     `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys entries have the form key:companyId[:admin].
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
