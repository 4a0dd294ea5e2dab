package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation.
type Policy struct {
	MinLength int
	MaxLength int
	// RejectVeryWeak enables a small deny-list of trivial passwords.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns the baseline used for interactive web sign-in.
// Length bounds follow the usual registration defaults (6..128 characters).
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      6,
			MaxLength:      128,
			RejectVeryWeak: false,
		},
	}
}

type envU32 struct {
	key      string
	min, max uint32
	dst      func(*Config, uint32) error
}

var argon2Env = []envU32{
	{key: "STEPGATE_ARGON2_MEMORY_KIB", min: 8 * 1024, max: 1024 * 1024, dst: func(c *Config, v uint32) error { c.Params.MemoryKiB = v; return nil }},
	{key: "STEPGATE_ARGON2_ITERATIONS", min: 1, max: 20, dst: func(c *Config, v uint32) error { c.Params.Iterations = v; return nil }},
	{key: "STEPGATE_ARGON2_PARALLELISM", min: 1, max: 64, dst: func(c *Config, v uint32) error {
		p, err := u32ToU8(v)
		if err != nil {
			return err
		}
		c.Params.Parallelism = p
		return nil
	}},
	{key: "STEPGATE_ARGON2_SALT_LEN", min: 8, max: 64, dst: func(c *Config, v uint32) error { c.Params.SaltLength = v; return nil }},
	{key: "STEPGATE_ARGON2_KEY_LEN", min: 16, max: 64, dst: func(c *Config, v uint32) error { c.Params.KeyLength = v; return nil }},
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
//   - STEPGATE_PASSWORD_MIN_LEN, STEPGATE_PASSWORD_MAX_LEN
//   - STEPGATE_PASSWORD_REJECT_VERY_WEAK (true/false)
//   - STEPGATE_ARGON2_MEMORY_KIB, STEPGATE_ARGON2_ITERATIONS, STEPGATE_ARGON2_PARALLELISM
//   - STEPGATE_ARGON2_SALT_LEN, STEPGATE_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("STEPGATE_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("STEPGATE_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}
	if v, ok := os.LookupEnv("STEPGATE_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("STEPGATE_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}
	if v, ok := os.LookupEnv("STEPGATE_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("STEPGATE_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	for _, e := range argon2Env {
		v, ok := os.LookupEnv(e.key)
		if !ok {
			continue
		}
		u, err := atou32InRange(v, e.min, e.max)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.key, err)
		}
		if err := e.dst(&cfg, u); err != nil {
			return Config{}, fmt.Errorf("%s: %w", e.key, err)
		}
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32InRange(s string, minVal, maxVal uint32) (uint32, error) {
	u64, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}
	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}
