package account

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls account handler behavior and throttling.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	// LoginIPMax failed sign-ins per client IP within LoginIPWindow block further attempts.
	LoginIPMax    int
	LoginIPWindow time.Duration

	// LoginRatePerMinute and LoginBurst shape the per-IP token bucket applied to
	// every sign-in POST, successful or not.
	LoginRatePerMinute int
	LoginBurst         int
}

// DefaultConfig returns the defaults used when no env override is set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:       64 << 10,
		LoginIPMax:         20,
		LoginIPWindow:      5 * time.Minute,
		LoginRatePerMinute: 30,
		LoginBurst:         10,
	}
}

// LoadConfigFromEnv loads account config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		TrustProxy:         envBool("STEPGATE_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:       envInt64("STEPGATE_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		LoginIPMax:         envInt("STEPGATE_AUTH_LOGIN_IP_MAX", def.LoginIPMax),
		LoginIPWindow:      envDuration("STEPGATE_AUTH_LOGIN_IP_WINDOW", def.LoginIPWindow),
		LoginRatePerMinute: envInt("STEPGATE_AUTH_LOGIN_RATE_PER_MINUTE", def.LoginRatePerMinute),
		LoginBurst:         envInt("STEPGATE_AUTH_LOGIN_BURST", def.LoginBurst),
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
