package session

import (
	"net/http"
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := DefaultConfig()
	if cfg.TTL != def.TTL || cfg.CookieName != def.CookieName || cfg.SameSite != http.SameSiteLaxMode {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.SigningKeyHex != "" {
		t.Fatalf("expected empty signing key by default")
	}
}

func TestLoadConfigFromEnv_InvalidDurations(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_TTL", "-5m")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative duration, got %v", err)
	}
}

func TestLoadConfigFromEnv_ZeroTTLRejected(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_TTL", "0s")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for zero ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidTokenBytes(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_TOKEN_BYTES", "16")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for small token bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_IdleLongerThanTTL(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_TTL", "24h")
	t.Setenv("STEPGATE_SESSION_IDLE_TTL", "48h")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for idle > ttl, got %v", err)
	}
}

func TestLoadConfigFromEnv_SameSiteNoneRequiresSecure(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_COOKIE_SAMESITE", "none")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for SameSite=None without Secure, got %v", err)
	}

	t.Setenv("STEPGATE_SESSION_COOKIE_SECURE", "true")
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SameSite != http.SameSiteNoneMode || !cfg.CookieSecure {
		t.Fatalf("cookie flags mismatch: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("STEPGATE_SESSION_ISSUER", "stepgate-test")
	t.Setenv("STEPGATE_SESSION_TTL", "48h")
	t.Setenv("STEPGATE_SESSION_IDLE_TTL", "0")
	t.Setenv("STEPGATE_SESSION_CLOCK_SKEW", "20s")
	t.Setenv("STEPGATE_SESSION_TOKEN_BYTES", "48")
	t.Setenv("STEPGATE_SESSION_SIGNING_KEY_HEX", "abcd")
	t.Setenv("STEPGATE_SESSION_COOKIE_NAME", "sg")
	t.Setenv("STEPGATE_SESSION_COOKIE_SAMESITE", "strict")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Issuer != "stepgate-test" {
		t.Fatalf("issuer mismatch: %q", cfg.Issuer)
	}
	if cfg.TTL != 48*time.Hour {
		t.Fatalf("ttl mismatch: %v", cfg.TTL)
	}
	if cfg.IdleTTL != 0 {
		t.Fatalf("idle ttl mismatch: %v", cfg.IdleTTL)
	}
	if cfg.ClockSkew != 20*time.Second {
		t.Fatalf("clock skew mismatch: %v", cfg.ClockSkew)
	}
	if cfg.TokenBytes != 48 {
		t.Fatalf("token bytes mismatch: %d", cfg.TokenBytes)
	}
	if cfg.SigningKeyHex != "abcd" || cfg.CookieName != "sg" || cfg.SameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie config mismatch: %+v", cfg)
	}
}
