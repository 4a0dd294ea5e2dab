package app

import (
	"errors"
	"fmt"
	"strings"

	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/pgutil"
	"stepgate/cmd/security/token"
)

// ValidateSecurityConfig enforces stepgate's startup security policy. It fails
// fast instead of falling back to weaker settings.
func ValidateSecurityConfig(cfg Config, sess session.Config) error {
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("security policy: %w", err)
	}

	if cfg.DatabaseURL != "" {
		if strings.TrimSpace(sess.SigningKeyHex) == "" {
			return errors.New("security policy: STEPGATE_DATABASE_URL is set but STEPGATE_SESSION_SIGNING_KEY_HEX is missing")
		}
		if _, err := pgutil.CheckSchema(cfg.DBSchema); err != nil {
			return fmt.Errorf("security policy: STEPGATE_DB_SCHEMA: %w", err)
		}
	}

	if !cfg.RequireTokenHMAC {
		return nil
	}

	// The key is used as raw bytes, so the minimum is measured in bytes.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: STEPGATE_REQUIRE_TOKEN_HMAC=true but STEPGATE_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: STEPGATE_REQUIRE_TOKEN_HMAC=true but STEPGATE_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}
	if !token.HMACEnabled() {
		return errors.New("security policy: STEPGATE_REQUIRE_TOKEN_HMAC=true but the token hasher is not in HMAC mode")
	}
	return nil
}
