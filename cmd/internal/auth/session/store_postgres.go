package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/identity/ids"
	"stepgate/cmd/internal/pgutil"
)

// PostgresStore implements Store using PostgreSQL (<schema>.web_sessions).
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresStore creates a Postgres-backed session store in schema.
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	schema, err := pgutil.CheckSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return &PostgresStore{pool: pool, table: pgutil.Ident(schema, "web_sessions")}, nil
}

// Create inserts a new session row and returns it.
func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Row, error) {
	id, err := ids.NewULID(in.Now)
	if err != nil {
		return Row{}, err
	}
	values := in.Values
	if values == nil {
		values = map[string]string{}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (
			id, token_hash, user_id, data,
			created_at, last_used_at, expires_at, revoked_at,
			user_agent, ip
		) VALUES (
			$1, $2, $3, $4,
			$5, $5, $6, NULL,
			$7, $8
		)
	`, id, in.TokenHash, nullIfEmpty(in.UserID), values, in.Now, in.ExpiresAt, nullIfEmpty(in.UserAgent), nullIfEmpty(in.IP))
	if err != nil {
		if pgutil.ForeignKeyViolation(err) {
			return Row{}, ErrSessionNotFound
		}
		return Row{}, err
	}

	return Row{
		ID:         id,
		TokenHash:  in.TokenHash,
		UserID:     in.UserID,
		Values:     values,
		CreatedAt:  in.Now,
		LastUsedAt: in.Now,
		ExpiresAt:  in.ExpiresAt,
		UserAgent:  in.UserAgent,
		IP:         in.IP,
	}, nil
}

// GetByTokenHash loads a session row by token hash.
func (s *PostgresStore) GetByTokenHash(ctx context.Context, tokenHash string) (Row, error) {
	var (
		row       Row
		userID    *string
		userAgent *string
		ipText    *string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT
			id, token_hash, user_id, data,
			created_at, last_used_at, expires_at, revoked_at,
			user_agent, host(ip)
		FROM `+s.table+`
		WHERE token_hash = $1
	`, tokenHash).Scan(
		&row.ID,
		&row.TokenHash,
		&userID,
		&row.Values,
		&row.CreatedAt,
		&row.LastUsedAt,
		&row.ExpiresAt,
		&row.RevokedAt,
		&userAgent,
		&ipText,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Row{}, ErrSessionNotFound
	}
	if err != nil {
		return Row{}, err
	}

	row.UserID = deref(userID)
	row.UserAgent = deref(userAgent)
	row.IP = deref(ipText)
	if row.Values == nil {
		row.Values = map[string]string{}
	}
	return row, nil
}

// Save replaces the user binding and data of an active session.
func (s *PostgresStore) Save(ctx context.Context, now time.Time, sessionID, userID string, values map[string]string) error {
	if values == nil {
		values = map[string]string{}
	}
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET user_id = $2, data = $3, last_used_at = $4
		WHERE id = $1 AND revoked_at IS NULL
	`, sessionID, nullIfEmpty(userID), values, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionRevoked
	}
	return nil
}

// Touch updates last_used_at for a session.
func (s *PostgresStore) Touch(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET last_used_at = GREATEST(last_used_at, $2)
		WHERE id = $1
	`, sessionID, now)
	return err
}

// Revoke revokes a single session (idempotent).
func (s *PostgresStore) Revoke(ctx context.Context, now time.Time, sessionID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, sessionID, now)
	return err
}

// RevokeAll revokes all sessions for a user (idempotent).
func (s *PostgresStore) RevokeAll(ctx context.Context, now time.Time, userID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE user_id = $1
	`, userID, now)
	return err
}

// DeleteStale deletes revoked and expired sessions.
func (s *PostgresStore) DeleteStale(ctx context.Context, now time.Time) (int, error) {
	ct, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table+`
		WHERE expires_at <= $1 OR revoked_at IS NOT NULL
	`, now)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
