package app

import (
	"time"

	"stepgate/cmd/internal/pgutil"
)

// Config contains the server runtime configuration loaded from environment variables.
// Session, account, password and elevation settings are loaded by their own packages.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Empty DatabaseURL selects in-memory stores (dev mode).
	DatabaseURL   string
	DBSchema      string
	DBMaxConns    int32
	DBMinConns    int32
	DBAutoMigrate bool

	// If true, /readyz returns 503 unless the DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, STEPGATE_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and session
	// token hashes are HMAC-based.
	RequireTokenHMAC bool

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("STEPGATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("STEPGATE_LOG_LEVEL", "info"),
		LogFormat: EnvString("STEPGATE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("STEPGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("STEPGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("STEPGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("STEPGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("STEPGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:   EnvString("STEPGATE_DATABASE_URL", ""),
		DBSchema:      EnvString("STEPGATE_DB_SCHEMA", pgutil.DefaultSchema),
		DBMaxConns:    EnvInt32("STEPGATE_DB_MAX_CONNS", 10),
		DBMinConns:    EnvInt32("STEPGATE_DB_MIN_CONNS", 0),
		DBAutoMigrate: EnvBool("STEPGATE_DB_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool("STEPGATE_READINESS_REQUIRE_DB", false),
		RequireTokenHMAC:   EnvBool("STEPGATE_REQUIRE_TOKEN_HMAC", false),
		MetricsEnabled:     EnvBool("STEPGATE_METRICS_ENABLED", true),
	}
}
