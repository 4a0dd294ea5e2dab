package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stepgate/cmd/identity/ids"
	"stepgate/cmd/internal/pgutil"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must NOT close it.
// Table identifiers are quoted through pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "stepgate").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.CheckSchema(schema)
		if err != nil {
			return fmt.Errorf("identity: %w", err)
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: pgutil.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `u.id, u.username, u.username_norm, u.email, u.email_norm, u.display_name,
       COALESCE(u.elevation_secret, ''), u.created_at`

// CreateUser inserts the user and its credentials in one transaction.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return CreateUserResult{}, invalid(op, "nil store")
	}
	if err := ctx.Err(); err != nil {
		return CreateUserResult{}, err
	}

	p, err := prepareUser(op, in, ids.NewULID)
	if err != nil {
		return CreateUserResult{}, err
	}
	u := p.user

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return CreateUserResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("users")+` (
		     id, username, username_norm, email, email_norm, display_name, elevation_secret, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Username, u.UsernameNorm, u.Email, u.EmailNorm, u.DisplayName, u.ElevationSecret, u.CreatedAt,
	)
	if err != nil {
		if c, ok := pgutil.UniqueViolation(err); ok {
			return CreateUserResult{}, ConflictError{Op: op, Field: conflictField(c)}
		}
		return CreateUserResult{}, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO `+s.table("user_credentials")+` (user_id, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $3)`,
		u.ID, p.pwHash, u.CreatedAt,
	)
	if err != nil {
		return CreateUserResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateUserResult{}, err
	}
	return CreateUserResult{User: u}, nil
}

// SaveUser updates the display name. A row without an elevation secret gets one;
// an existing secret is kept (COALESCE), so repeated saves never rotate it.
func (s *PostgresStore) SaveUser(ctx context.Context, in SaveUserInput) (User, error) {
	const op = "identity.SaveUser"

	if s == nil || s.pool == nil {
		return User{}, invalid(op, "nil store")
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return User{}, invalid(op, "missing user_id")
	}

	candidate, err := NewElevationSecret()
	if err != nil {
		return User{}, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.table("users")+` AS u
		    SET display_name = $2,
		        elevation_secret = COALESCE(NULLIF(u.elevation_secret, ''), $3)
		  WHERE u.id = $1
		RETURNING `+userColumns,
		in.UserID, trimPtr(in.DisplayName), candidate,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByID loads a user by id.
func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	const op = "identity.GetUserByID"

	if s == nil || s.pool == nil {
		return User{}, invalid(op, "nil store")
	}
	if !ids.Valid(strings.TrimSpace(userID)) {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		   FROM `+s.table("users")+` AS u
		  WHERE u.id = $1`,
		strings.TrimSpace(userID),
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return u, nil
}

// GetUserAuthByUsername loads a user and its password hash by normalized username.
func (s *PostgresStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.userAuthBy(ctx, "identity.GetUserAuthByUsername", "username_norm", NormalizeUsername(username))
}

// GetUserAuthByEmail loads a user and its password hash by normalized email.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.userAuthBy(ctx, "identity.GetUserAuthByEmail", "email_norm", NormalizeEmail(email))
}

func (s *PostgresStore) userAuthBy(ctx context.Context, op, column, key string) (UserAuth, error) {
	if s == nil || s.pool == nil {
		return UserAuth{}, invalid(op, "nil store")
	}
	if key == "" {
		return UserAuth{}, invalid(op, "empty login")
	}

	// column is one of two constants chosen by the caller, never user input.
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+`, c.password_hash
		   FROM `+s.table("users")+` AS u
		   JOIN `+s.table("user_credentials")+` AS c ON c.user_id = u.id
		  WHERE u.`+column+` = $1`,
		key,
	)

	var out UserAuth
	err := row.Scan(userDest(&out.User, &out.PasswordHash)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}
	return out, nil
}

func (s *PostgresStore) table(name string) string {
	return pgutil.Ident(s.schema, name)
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	if err := row.Scan(userDest(&u)...); err != nil {
		return User{}, err
	}
	return u, nil
}

func userDest(u *User, extra ...any) []any {
	dest := []any{
		&u.ID, &u.Username, &u.UsernameNorm, &u.Email, &u.EmailNorm, &u.DisplayName,
		&u.ElevationSecret, &u.CreatedAt,
	}
	return append(dest, extra...)
}

// conflictField maps a unique constraint name to the logical form field.
func conflictField(constraint string) string {
	switch {
	case constraint == "uq_users_username_norm", strings.Contains(constraint, "username"):
		return "username"
	case constraint == "uq_users_email_norm", strings.Contains(constraint, "email"):
		return "email"
	default:
		return "unique"
	}
}
