package session

import (
	"context"
	"time"
)

// Row mirrors the web_sessions row.
type Row struct {
	ID         string
	TokenHash  string
	UserID     string // empty for anonymous sessions
	Values     map[string]string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	UserAgent  string
	IP         string
}

// CreateInput describes a new session row.
type CreateInput struct {
	Now       time.Time
	TokenHash string
	UserID    string
	Values    map[string]string
	ExpiresAt time.Time
	UserAgent string
	IP        string
}

// Store abstracts persistence for browser sessions.
type Store interface {
	// Create inserts a row and returns it with its new ULID.
	Create(ctx context.Context, in CreateInput) (Row, error)

	// GetByTokenHash loads a row by token hash, revoked or not.
	// Returns ErrSessionNotFound when no row matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (Row, error)

	// Save replaces the identity binding and values of an active row.
	Save(ctx context.Context, now time.Time, sessionID, userID string, values map[string]string) error

	// Touch updates last_used_at.
	Touch(ctx context.Context, now time.Time, sessionID string) error

	// Revoke revokes a single session (idempotent).
	Revoke(ctx context.Context, now time.Time, sessionID string) error

	// RevokeAll revokes every session bound to userID (idempotent).
	RevokeAll(ctx context.Context, now time.Time, userID string) error

	// DeleteStale removes rows that are revoked or expired at now and
	// returns how many were removed.
	DeleteStale(ctx context.Context, now time.Time) (int, error)
}
