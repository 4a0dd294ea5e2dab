package things

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

// PostgresStore implements Store over <schema>.things.
// The pool is owned by the caller.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("things: nil pool")
	}
	schema, err := pgutil.CheckSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("things: %w", err)
	}
	return &PostgresStore{pool: pool, table: pgutil.Ident(schema, "things")}, nil
}

func (s *PostgresStore) Create(ctx context.Context, in CreateInput) (Thing, error) {
	if in.UserID == "" {
		return Thing{}, errors.New("things: missing user id")
	}
	name, err := normalizeName(in.Name)
	if err != nil {
		return Thing{}, err
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Thing{}, err
	}

	var t Thing
	err = s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table+` (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, created_at
	`, id, in.UserID, name, now).Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt)
	if err != nil {
		if pgutil.ForeignKeyViolation(err) {
			return Thing{}, fmt.Errorf("things: unknown user %q", in.UserID)
		}
		return Thing{}, err
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string) ([]Thing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, name, created_at
		FROM `+s.table+`
		WHERE user_id = $1
		ORDER BY id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Thing, error) {
		var t Thing
		err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt)
		return t, err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, id string) (Thing, error) {
	if !ids.Valid(id) {
		return Thing{}, ErrNotFound
	}
	var t Thing
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, name, created_at
		FROM `+s.table+`
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Thing{}, ErrNotFound
	}
	return t, err
}

func (s *PostgresStore) Delete(ctx context.Context, userID, id string) error {
	if !ids.Valid(id) {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
