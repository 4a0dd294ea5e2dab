package identity

import (
	"errors"

	"stepgate/cmd/security/password"
)

// HashPassword returns a PHC Argon2id hash using the env-driven password config.
func HashPassword(plain string) (string, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return "", err
	}
	return cfg.Hash(plain)
}

// VerifyPassword checks plain against a stored PHC hash.
func VerifyPassword(plain, encodedPHC string) (bool, error) {
	cfg, err := password.FromEnv()
	if err != nil {
		return false, err
	}
	ok, err := cfg.Verify(encodedPHC, plain)
	if errors.Is(err, password.ErrInvalidHash) {
		return false, errors.New("invalid argon2id hash format")
	}
	return ok, err
}

// PasswordPolicyError reports whether err is a password policy rejection
// that should be shown to the user rather than logged.
func PasswordPolicyError(err error) bool {
	return errors.Is(err, password.ErrPasswordTooShort) ||
		errors.Is(err, password.ErrPasswordTooLong) ||
		errors.Is(err, password.ErrWeakPassword)
}
