package identity

import (
	"context"
	"time"
)

// User is stepgate's security principal.
type User struct {
	ID           string
	Username     *string
	UsernameNorm *string
	Email        *string
	EmailNorm    *string

	DisplayName *string

	// ElevationSecret is compared by value against the session's elevation token.
	// It must never be rendered or logged.
	ElevationSecret string

	CreatedAt time.Time
}

// Label is the name shown to the signed-in user.
func (u User) Label() string {
	for _, s := range []*string{u.DisplayName, u.Username, u.Email} {
		if s != nil && *s != "" {
			return *s
		}
	}
	return u.ID
}

// UserAuth is a User plus its stored password hash, for sign-in only.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a registration.
// At least one of Username or Email must be provided.
type CreateUserInput struct {
	Username    *string
	Email       *string
	DisplayName *string
	Password    string
	Now         time.Time
}

// CreateUserResult returns the created user.
type CreateUserResult struct {
	User User
}

// SaveUserInput updates mutable profile fields.
// Saving a user that has no elevation secret yet generates one.
type SaveUserInput struct {
	UserID      string
	DisplayName *string
}

// Store is the identity persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error)
	SaveUser(ctx context.Context, in SaveUserInput) (User, error)

	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error)
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}

type preparedUser struct {
	user     User
	pwHash   string
	username *string
	email    *string
}

// prepareUser validates and normalizes a registration, hashes the password and
// assigns id + elevation secret. Shared by every Store implementation.
func prepareUser(op string, in CreateUserInput, newID func(time.Time) (string, error)) (preparedUser, error) {
	username := trimPtr(in.Username)
	email := trimPtr(in.Email)

	if username == nil && email == nil {
		return preparedUser{}, invalid(op, "username or email is required")
	}
	if in.Password == "" {
		return preparedUser{}, invalid(op, "password is required")
	}
	if email != nil && !LooksLikeEmail(*email) {
		return preparedUser{}, invalid(op, "email is malformed")
	}
	if username != nil && LooksLikeEmail(*username) {
		return preparedUser{}, invalid(op, "username must not contain @")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	pwHash, err := HashPassword(in.Password)
	if err != nil {
		if PasswordPolicyError(err) {
			return preparedUser{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
		}
		return preparedUser{}, err
	}

	id, err := newID(now)
	if err != nil {
		return preparedUser{}, err
	}

	u := User{
		ID:          id,
		Username:    username,
		Email:       email,
		DisplayName: trimPtr(in.DisplayName),
		CreatedAt:   now,
	}
	if username != nil {
		n := NormalizeUsername(*username)
		u.UsernameNorm = &n
	}
	if email != nil {
		n := NormalizeEmail(*email)
		u.EmailNorm = &n
	}
	if _, err := EnsureElevationSecret(&u); err != nil {
		return preparedUser{}, err
	}

	return preparedUser{user: u, pwHash: pwHash, username: username, email: email}, nil
}
