package identity

import (
	"context"
	"strings"
	"sync"

	"stepgate/cmd/identity/ids"
)

// MemoryStore is the dev-mode Store used when no database is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]User
	pwHashes   map[string]string
	byUsername map[string]string // username_norm -> id
	byEmail    map[string]string // email_norm -> id
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]User),
		pwHashes:   make(map[string]string),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// CreateUser registers a user; the elevation secret is generated here.
func (s *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return CreateUserResult{}, err
	}

	p, err := prepareUser(op, in, ids.NewULID)
	if err != nil {
		return CreateUserResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p.user.UsernameNorm != nil {
		if _, taken := s.byUsername[*p.user.UsernameNorm]; taken {
			return CreateUserResult{}, ConflictError{Op: op, Field: "username"}
		}
	}
	if p.user.EmailNorm != nil {
		if _, taken := s.byEmail[*p.user.EmailNorm]; taken {
			return CreateUserResult{}, ConflictError{Op: op, Field: "email"}
		}
	}

	s.users[p.user.ID] = p.user
	s.pwHashes[p.user.ID] = p.pwHash
	if p.user.UsernameNorm != nil {
		s.byUsername[*p.user.UsernameNorm] = p.user.ID
	}
	if p.user.EmailNorm != nil {
		s.byEmail[*p.user.EmailNorm] = p.user.ID
	}

	return CreateUserResult{User: p.user}, nil
}

// SaveUser updates profile fields and backfills a missing elevation secret.
func (s *MemoryStore) SaveUser(ctx context.Context, in SaveUserInput) (User, error) {
	const op = "identity.SaveUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(in.UserID) == "" {
		return User{}, invalid(op, "missing user_id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[in.UserID]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	u.DisplayName = trimPtr(in.DisplayName)
	if _, err := EnsureElevationSecret(&u); err != nil {
		return User{}, err
	}
	s.users[u.ID] = u
	return u, nil
}

// GetUserByID loads a user by id.
func (s *MemoryStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return User{}, NotFoundError{Op: "identity.GetUserByID", Resource: "user"}
	}
	return u, nil
}

// GetUserAuthByUsername loads a user and password hash by username (case-insensitive).
func (s *MemoryStore) GetUserAuthByUsername(ctx context.Context, username string) (UserAuth, error) {
	return s.userAuthBy(ctx, "identity.GetUserAuthByUsername", s.byUsername, NormalizeUsername(username))
}

// GetUserAuthByEmail loads a user and password hash by email (case-insensitive).
func (s *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	return s.userAuthBy(ctx, "identity.GetUserAuthByEmail", s.byEmail, NormalizeEmail(email))
}

func (s *MemoryStore) userAuthBy(ctx context.Context, op string, index map[string]string, key string) (UserAuth, error) {
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	if key == "" {
		return UserAuth{}, invalid(op, "empty login")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return UserAuth{User: s.users[id], PasswordHash: s.pwHashes[id]}, nil
}

// putUser inserts a user row as-is. Tests use it to model legacy rows.
func (s *MemoryStore) putUser(u User, pwHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.pwHashes[u.ID] = pwHash
	if u.UsernameNorm != nil {
		s.byUsername[*u.UsernameNorm] = u.ID
	}
	if u.EmailNorm != nil {
		s.byEmail[*u.EmailNorm] = u.ID
	}
}
