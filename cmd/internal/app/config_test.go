package app

import (
	"testing"
	"time"

	"stepgate/cmd/internal/pgutil"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{
		"STEPGATE_HTTP_ADDR", "STEPGATE_LOG_FORMAT", "STEPGATE_DATABASE_URL",
		"STEPGATE_DB_SCHEMA", "STEPGATE_METRICS_ENABLED", "STEPGATE_HTTP_READ_TIMEOUT",
	} {
		t.Setenv(k, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != "0.0.0.0:8080" {
		t.Fatalf("HTTPAddr=%q", cfg.HTTPAddr)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("LogFormat=%q want=json", cfg.LogFormat)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL=%q want empty", cfg.DatabaseURL)
	}
	if cfg.DBSchema != pgutil.DefaultSchema {
		t.Fatalf("DBSchema=%q want=%q", cfg.DBSchema, pgutil.DefaultSchema)
	}
	if !cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled=false want=true")
	}
	if cfg.ReadTimeout != 15*time.Second {
		t.Fatalf("ReadTimeout=%v", cfg.ReadTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STEPGATE_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("STEPGATE_LOG_FORMAT", "pretty")
	t.Setenv("STEPGATE_DB_MAX_CONNS", "4")
	t.Setenv("STEPGATE_DB_AUTO_MIGRATE", "true")
	t.Setenv("STEPGATE_METRICS_ENABLED", "false")
	t.Setenv("STEPGATE_HTTP_IDLE_TIMEOUT", "90s")

	cfg := LoadConfig()
	if cfg.HTTPAddr != "127.0.0.1:9000" || cfg.LogFormat != "pretty" {
		t.Fatalf("addr=%q format=%q", cfg.HTTPAddr, cfg.LogFormat)
	}
	if cfg.DBMaxConns != 4 || !cfg.DBAutoMigrate {
		t.Fatalf("DBMaxConns=%d DBAutoMigrate=%v", cfg.DBMaxConns, cfg.DBAutoMigrate)
	}
	if cfg.MetricsEnabled {
		t.Fatalf("MetricsEnabled=true want=false")
	}
	if cfg.IdleTimeout != 90*time.Second {
		t.Fatalf("IdleTimeout=%v want=90s", cfg.IdleTimeout)
	}
}

func TestEnvHelpersFallBackOnInvalid(t *testing.T) {
	t.Setenv("STEPGATE_TEST_INT", "-3")
	t.Setenv("STEPGATE_TEST_INT32", "99999999999")
	t.Setenv("STEPGATE_TEST_BOOL", "maybe")
	t.Setenv("STEPGATE_TEST_DUR", "soon")
	t.Setenv("STEPGATE_TEST_STR", "   ")

	if got := EnvInt("STEPGATE_TEST_INT", 7); got != 7 {
		t.Fatalf("EnvInt=%d want=7", got)
	}
	if got := EnvInt32("STEPGATE_TEST_INT32", 2); got != 2 {
		t.Fatalf("EnvInt32=%d want=2", got)
	}
	if got := EnvBool("STEPGATE_TEST_BOOL", true); !got {
		t.Fatalf("EnvBool=false want=true")
	}
	if got := EnvDuration("STEPGATE_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("EnvDuration=%v want=1m", got)
	}
	if got := EnvString("STEPGATE_TEST_STR", "def"); got != "def" {
		t.Fatalf("EnvString=%q want=def", got)
	}
}
