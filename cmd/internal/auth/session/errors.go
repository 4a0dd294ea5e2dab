package session

import "errors"

var (
	// ErrInvalidToken is returned when a session cookie fails verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when no row matches a token hash or id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the session has passed its absolute or idle lifetime.
	ErrSessionExpired = errors.New("session expired")

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
