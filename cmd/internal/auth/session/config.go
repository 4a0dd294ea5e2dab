package session

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for browser sessions.
type Config struct {
	// Issuer is the "iss" claim of the cookie token.
	Issuer string

	// TTL is the absolute lifetime of a session, counted from its creation.
	TTL time.Duration

	// IdleTTL ends a session that has not been used for this long. Zero disables it.
	IdleTTL time.Duration

	// ClockSkew is tolerated when validating cookie token times.
	ClockSkew time.Duration

	// TokenBytes is the entropy of the opaque session token.
	TokenBytes int

	// SigningKeyHex is the hex-encoded Ed25519 secret key for PASETO v4.public.
	SigningKeyHex string

	CookieName   string
	CookiePath   string
	CookieSecure bool
	SameSite     http.SameSite
}

// DefaultConfig returns development defaults. SigningKeyHex is left empty.
func DefaultConfig() Config {
	return Config{
		Issuer:     "stepgate",
		TTL:        14 * 24 * time.Hour,
		IdleTTL:    2 * 24 * time.Hour,
		ClockSkew:  30 * time.Second,
		TokenBytes: 32,
		CookieName: "stepgate_session",
		CookiePath: "/",
		SameSite:   http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads session configuration from the environment.
//
// Optional (durations are Go duration strings):
//   - STEPGATE_SESSION_ISSUER
//   - STEPGATE_SESSION_TTL
//   - STEPGATE_SESSION_IDLE_TTL ("0" disables idle expiry)
//   - STEPGATE_SESSION_CLOCK_SKEW
//   - STEPGATE_SESSION_TOKEN_BYTES (32..64)
//   - STEPGATE_SESSION_SIGNING_KEY_HEX
//   - STEPGATE_SESSION_COOKIE_NAME
//   - STEPGATE_SESSION_COOKIE_SECURE
//   - STEPGATE_SESSION_COOKIE_SAMESITE (lax|strict|none)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("STEPGATE_SESSION_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	durations := []struct {
		key    string
		dst    *time.Duration
		allow0 bool
	}{
		{"STEPGATE_SESSION_TTL", &cfg.TTL, false},
		{"STEPGATE_SESSION_IDLE_TTL", &cfg.IdleTTL, true},
		{"STEPGATE_SESSION_CLOCK_SKEW", &cfg.ClockSkew, true},
	}
	for _, d := range durations {
		v := strings.TrimSpace(os.Getenv(d.key))
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed < 0 || (parsed == 0 && !d.allow0) {
			return Config{}, ErrConfig
		}
		*d.dst = parsed
	}

	if v := strings.TrimSpace(os.Getenv("STEPGATE_SESSION_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.TokenBytes = n
	}

	cfg.SigningKeyHex = strings.TrimSpace(os.Getenv("STEPGATE_SESSION_SIGNING_KEY_HEX"))

	if v := strings.TrimSpace(os.Getenv("STEPGATE_SESSION_COOKIE_NAME")); v != "" {
		cfg.CookieName = v
	}
	if v := strings.TrimSpace(os.Getenv("STEPGATE_SESSION_COOKIE_SECURE")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.CookieSecure = b
	}
	if v := strings.TrimSpace(os.Getenv("STEPGATE_SESSION_COOKIE_SAMESITE")); v != "" {
		ss, ok := parseSameSite(v)
		if !ok {
			return Config{}, ErrConfig
		}
		cfg.SameSite = ss
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that hold regardless of where the config came from.
func (c Config) Validate() error {
	if c.TTL <= 0 || c.TokenBytes < 32 || c.CookieName == "" {
		return ErrConfig
	}
	if c.IdleTTL > c.TTL {
		return ErrConfig
	}
	// Browsers drop SameSite=None cookies without Secure.
	if c.SameSite == http.SameSiteNoneMode && !c.CookieSecure {
		return ErrConfig
	}
	return nil
}

func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return 0, false
	}
}
