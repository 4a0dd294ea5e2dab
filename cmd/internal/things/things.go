// Package things is the resource stepgate protects: per-user named items.
// Every route requires primary sign-in and an elevated session.
package things

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNameLen bounds Thing.Name in runes.
const MaxNameLen = 200

var (
	ErrNotFound    = errors.New("things: not found")
	ErrInvalidName = errors.New("things: name must be 1-200 characters")
)

// Thing belongs to exactly one user.
type Thing struct {
	ID        string
	UserID    string
	Name      string
	CreatedAt time.Time
}

// CreateInput describes a new Thing.
type CreateInput struct {
	UserID string
	Name   string
	Now    time.Time
}

// Store persists things. Lookups are always scoped to the owning user, so a
// foreign id behaves exactly like a missing one.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Thing, error)
	List(ctx context.Context, userID string) ([]Thing, error)
	Get(ctx context.Context, userID, id string) (Thing, error)
	Delete(ctx context.Context, userID, id string) error
}

// normalizeName trims and validates a submitted name.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}
