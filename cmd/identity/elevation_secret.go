package identity

import (
	"fmt"

	"github.com/google/uuid"
)

// NewElevationSecret returns a fresh random (v4) UUID string.
func NewElevationSecret() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("identity: elevation secret: %w", err)
	}
	return id.String(), nil
}

// EnsureElevationSecret fills u.ElevationSecret when it is empty.
// An existing secret is never replaced; changed reports whether one was generated.
func EnsureElevationSecret(u *User) (changed bool, err error) {
	if u == nil {
		return false, invalid("identity.EnsureElevationSecret", "nil user")
	}
	if u.ElevationSecret != "" {
		return false, nil
	}
	s, err := NewElevationSecret()
	if err != nil {
		return false, err
	}
	u.ElevationSecret = s
	return true, nil
}
