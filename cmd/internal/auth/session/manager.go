package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"stepgate/cmd/security/token"
)

// touchInterval bounds how often a read-only request refreshes last_used_at.
const touchInterval = time.Minute

// sweepInterval bounds how often issuing a session also deletes stale rows.
const sweepInterval = 10 * time.Minute

// RequestMeta is stored with a new session row for auditing.
type RequestMeta struct {
	UserAgent string
	IP        string
}

// Manager loads and commits browser sessions over HTTP.
type Manager struct {
	cfg    Config
	store  Store
	tokens CookieTokenManager
	now    func() time.Time

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager.
func NewManager(cfg Config, store Store, tokens CookieTokenManager, opts ...ManagerOption) (*Manager, error) {
	if store == nil || tokens == nil {
		return nil, ErrConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{cfg: cfg, store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Load resolves the request's session. A missing, forged, expired, idle or
// revoked cookie yields a fresh anonymous session; only store failures error.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return NewSession(), nil
	}

	now := m.now().UTC()
	s, err := m.resolve(r.Context(), c.Value, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidToken),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrSessionRevoked):
		return NewSession(), nil
	default:
		return nil, err
	}

	if now.Sub(s.lastUsedAt) >= touchInterval {
		// best-effort
		if err := m.store.Touch(r.Context(), now, s.id); err == nil {
			s.lastUsedAt = now
		}
	}
	return s, nil
}

func (m *Manager) resolve(ctx context.Context, cookie string, now time.Time) (*Session, error) {
	opaque, err := m.tokens.Verify(cookie, now)
	if err != nil {
		return nil, err
	}

	hash := token.HashSessionTokenHex(opaque)
	row, err := m.store.GetByTokenHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !token.EqualHex64(row.TokenHash, hash) {
		return nil, ErrSessionNotFound
	}
	if row.RevokedAt != nil {
		return nil, ErrSessionRevoked
	}
	if !row.ExpiresAt.After(now) {
		return nil, ErrSessionExpired
	}
	if m.cfg.IdleTTL > 0 && now.Sub(row.LastUsedAt) > m.cfg.IdleTTL {
		return nil, ErrSessionExpired
	}
	return fromRow(row), nil
}

// Commit persists changes made to s during the request and writes the cookie.
// It must run before the response body is written.
func (m *Manager) Commit(w http.ResponseWriter, r *http.Request, s *Session, meta RequestMeta) error {
	ctx := r.Context()
	now := m.now().UTC()

	switch {
	case s.destroyed:
		if !s.IsNew() {
			if err := m.store.Revoke(ctx, now, s.id); err != nil {
				return err
			}
		}
		m.clearCookie(w)
		*s = *NewSession()
		return nil

	case s.IsNew() && !s.dirty:
		return nil

	case s.IsNew() || s.renew:
		return m.issue(ctx, w, s, now, meta)

	case s.dirty:
		if err := m.store.Save(ctx, now, s.id, s.userID, s.values); err != nil {
			return err
		}
		s.dirty = false
		return nil
	}
	return nil
}

// issue writes s into a new row under a new token and revokes the previous row.
func (m *Manager) issue(ctx context.Context, w http.ResponseWriter, s *Session, now time.Time, meta RequestMeta) error {
	m.maybeSweep(ctx, now)

	opaque, err := newOpaqueToken(m.cfg.TokenBytes)
	if err != nil {
		return err
	}

	exp := now.Add(m.cfg.TTL)
	row, err := m.store.Create(ctx, CreateInput{
		Now:       now,
		TokenHash: token.HashSessionTokenHex(opaque),
		UserID:    s.userID,
		Values:    s.values,
		ExpiresAt: exp,
		UserAgent: meta.UserAgent,
		IP:        meta.IP,
	})
	if err != nil {
		return err
	}

	cookie, err := m.tokens.Issue(opaque, now, exp)
	if err != nil {
		return err
	}

	if old := s.id; old != "" {
		if err := m.store.Revoke(ctx, now, old); err != nil {
			return err
		}
	}

	s.id = row.ID
	s.lastUsedAt = now
	s.expiresAt = exp
	s.dirty = false
	s.renew = false

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    cookie,
		Path:     m.cfg.CookiePath,
		Expires:  exp,
		MaxAge:   int(m.cfg.TTL / time.Second),
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: m.cfg.SameSite,
	})
	return nil
}

// maybeSweep deletes stale rows at most once per sweepInterval. Failures are
// retried on the next interval.
func (m *Manager) maybeSweep(ctx context.Context, now time.Time) {
	m.sweepMu.Lock()
	if !m.lastSweep.IsZero() && now.Sub(m.lastSweep) < sweepInterval {
		m.sweepMu.Unlock()
		return
	}
	m.lastSweep = now
	m.sweepMu.Unlock()

	_, _ = m.store.DeleteStale(ctx, now)
}

// RevokeAll ends every session of userID, including the caller's.
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	return m.store.RevokeAll(ctx, m.now().UTC(), userID)
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.CookieSecure,
		SameSite: m.cfg.SameSite,
	})
}

func newOpaqueToken(nBytes int) (string, error) {
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
