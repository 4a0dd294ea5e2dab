package session

import (
	"maps"
	"time"
)

// Session is one browser session's key/value scope for the current request.
// It is not safe for concurrent use; each request loads its own copy.
type Session struct {
	id         string
	userID     string
	values     map[string]string
	lastUsedAt time.Time
	expiresAt  time.Time

	dirty     bool
	renew     bool
	destroyed bool
}

// NewSession returns an empty anonymous session that has no row yet.
func NewSession() *Session {
	return &Session{values: make(map[string]string)}
}

func fromRow(r Row) *Session {
	vals := make(map[string]string, len(r.Values))
	maps.Copy(vals, r.Values)
	return &Session{
		id:         r.ID,
		userID:     r.UserID,
		values:     vals,
		lastUsedAt: r.LastUsedAt,
		expiresAt:  r.ExpiresAt,
	}
}

// ID is the row id, empty until the session is first committed.
func (s *Session) ID() string { return s.id }

// IsNew reports whether the session has no stored row yet.
func (s *Session) IsNew() bool { return s.id == "" }

// Get returns the value stored under key.
func (s *Session) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *Session) Set(key, value string) {
	if cur, ok := s.values[key]; ok && cur == value {
		return
	}
	s.values[key] = value
	s.dirty = true
}

// Clear removes key. Clearing a missing key is a no-op.
func (s *Session) Clear(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Pop returns the value under key and clears it.
func (s *Session) Pop(key string) (string, bool) {
	v, ok := s.Get(key)
	if ok {
		s.Clear(key)
	}
	return v, ok
}

// IdentityRef is the authenticated user id, empty for anonymous sessions.
func (s *Session) IdentityRef() string { return s.userID }

// SetIdentityRef binds the session to a user. The next Commit issues a new
// session id and revokes the old one.
func (s *Session) SetIdentityRef(userID string) {
	s.userID = userID
	s.dirty = true
	s.renew = true
}

// Destroy marks the session for revocation on the next Commit.
func (s *Session) Destroy() {
	s.destroyed = true
}
