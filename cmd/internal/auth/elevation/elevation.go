package elevation

import (
	"crypto/subtle"
	"errors"
)

// TokenKey is the session key holding the elevation token.
const TokenKey = "elevation_token"

// ErrNoSecret is returned by Elevate when the identity has no elevation secret.
var ErrNoSecret = errors.New("elevation: identity has no elevation secret")

// Scope is the per-request session key/value scope.
type Scope interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Clear(key string)
}

// IsElevated reports whether the session token equals secret. Both must be present.
func IsElevated(secret string, s Scope) bool {
	if secret == "" || s == nil {
		return false
	}
	tok, ok := s.Get(TokenKey)
	if !ok || tok == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok), []byte(secret)) == 1
}

// Begin starts a fresh attempt: the token is cleared whatever its prior value.
func Begin(s Scope) {
	s.Clear(TokenKey)
}

// Elevate stamps the session with secret.
func Elevate(secret string, s Scope) error {
	if secret == "" {
		return ErrNoSecret
	}
	s.Set(TokenKey, secret)
	return nil
}
