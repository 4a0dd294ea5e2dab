package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"os"
	"strings"
)

// HMACEnvKey names the env var holding the session token HMAC key.
// #nosec G101 -- variable name, not a credential.
const HMACEnvKey = "STEPGATE_TOKEN_HMAC_KEY"

var (
	ErrHMACKeyMissing  = errors.New("token HMAC key missing")
	ErrHMACKeyTooShort = errors.New("token HMAC key too short")
)

func envKey() []byte {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil
	}
	return []byte(raw)
}

// HashSHA256Hex is the unkeyed digest used in dev mode.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex is the keyed digest.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured key, or ErrHMACKeyMissing /
// ErrHMACKeyTooShort when it is unset or shorter than minBytes.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	key := envKey()
	switch {
	case key == nil:
		return nil, ErrHMACKeyMissing
	case minBytes > 0 && len(key) < minBytes:
		return nil, ErrHMACKeyTooShort
	}
	return key, nil
}

// HMACEnabled reports whether a key is configured, whatever its length.
func HMACEnabled() bool { return envKey() != nil }

// HashSessionTokenHex is the digest stored in web_sessions.token_hash.
func HashSessionTokenHex(sessionToken string) string {
	if key := envKey(); key != nil {
		return HashHMACSHA256Hex(sessionToken, key)
	}
	return HashSHA256Hex(sessionToken)
}

// EqualHex64 compares two 64-char hex digests in constant time. Any other
// length never matches.
func EqualHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
