package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *testClock) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SigningKeyHex = GenerateSigningKeyHex()
	cfg.TTL = 24 * time.Hour
	cfg.IdleTTL = 2 * time.Hour

	tokens, err := NewPasetoV4CookieManager(cfg)
	if err != nil {
		t.Fatalf("cookie manager: %v", err)
	}
	store := NewMemoryStore()
	clock := &testClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	m, err := NewManager(cfg, store, tokens, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m, store, clock
}

func requestWith(c *http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		r.AddCookie(c)
	}
	return r
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func mustLoad(t *testing.T, m *Manager, c *http.Cookie) *Session {
	t.Helper()
	s, err := m.Load(requestWith(c))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s
}

func mustCommit(t *testing.T, m *Manager, s *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := m.Commit(rec, requestWith(nil), s, RequestMeta{UserAgent: "test/1.0", IP: "192.0.2.1"}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return sessionCookie(t, rec, m.cfg.CookieName)
}

func TestManager_UntouchedAnonymousSessionWritesNothing(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)

	s := mustLoad(t, m, nil)
	if !s.IsNew() {
		t.Fatalf("expected new session without cookie")
	}
	if c := mustCommit(t, m, s); c != nil {
		t.Fatalf("expected no cookie for untouched anonymous session, got %v", c)
	}
}

func TestManager_ValuesRoundTrip(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.Set("k", "v")
	c := mustCommit(t, m, s)
	if c == nil || !c.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", c)
	}

	s2 := mustLoad(t, m, c)
	if s2.IsNew() {
		t.Fatalf("expected stored session")
	}
	if v, ok := s2.Get("k"); !ok || v != "v" {
		t.Fatalf("Get(k)=(%q,%v) want v", v, ok)
	}

	s2.Clear("k")
	if again := mustCommit(t, m, s2); again != nil {
		t.Fatalf("plain save must not reissue the cookie")
	}
	s3 := mustLoad(t, m, c)
	if _, ok := s3.Get("k"); ok {
		t.Fatalf("expected cleared value to stay cleared")
	}
}

func TestManager_SetIdentityRefRotatesSessionID(t *testing.T) {
	t.Parallel()

	m, store, _ := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.Set("last_page", "/things")
	anon := mustCommit(t, m, s)
	anonID := s.ID()

	s = mustLoad(t, m, anon)
	s.SetIdentityRef("01J00000000000000000000USR")
	authed := mustCommit(t, m, s)
	if authed == nil {
		t.Fatalf("expected a new cookie after sign-in")
	}
	if s.ID() == anonID {
		t.Fatalf("expected session id to change on identity bind")
	}

	old := mustLoad(t, m, anon)
	if !old.IsNew() || old.IdentityRef() != "" {
		t.Fatalf("pre-sign-in cookie must no longer resolve")
	}

	cur := mustLoad(t, m, authed)
	if cur.IdentityRef() != "01J00000000000000000000USR" {
		t.Fatalf("IdentityRef=%q", cur.IdentityRef())
	}
	if v, _ := cur.Get("last_page"); v != "/things" {
		t.Fatalf("values must survive rotation, got %q", v)
	}

	row, err := store.GetByTokenHash(context.Background(), mustRowHash(t, store, anonID))
	if err != nil {
		t.Fatalf("GetByTokenHash: %v", err)
	}
	if row.RevokedAt == nil {
		t.Fatalf("expected old row revoked")
	}
}

func TestManager_DestroyClearsCookieAndRevokes(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.SetIdentityRef("01J00000000000000000000USR")
	c := mustCommit(t, m, s)

	s = mustLoad(t, m, c)
	s.Destroy()
	cleared := mustCommit(t, m, s)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected cookie deletion, got %+v", cleared)
	}
	if !mustLoad(t, m, c).IsNew() {
		t.Fatalf("destroyed session must not load")
	}
}

func TestManager_ExpiryAndIdle(t *testing.T) {
	t.Parallel()

	m, _, clock := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.Set("k", "v")
	c := mustCommit(t, m, s)

	clock.Advance(90 * time.Minute)
	if mustLoad(t, m, c).IsNew() {
		t.Fatalf("session within idle window must load")
	}

	clock.Advance(3 * time.Hour)
	if !mustLoad(t, m, c).IsNew() {
		t.Fatalf("idle session must load as new")
	}
}

func TestManager_AbsoluteExpiry(t *testing.T) {
	t.Parallel()

	m, _, clock := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.Set("k", "v")
	c := mustCommit(t, m, s)

	for i := 0; i < 25; i++ {
		clock.Advance(time.Hour)
		mustLoad(t, m, c)
	}
	if !mustLoad(t, m, c).IsNew() {
		t.Fatalf("session past its ttl must load as new")
	}
}

func TestManager_ForgedCookie(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	other, _, _ := newTestManager(t)

	s := mustLoad(t, other, nil)
	s.Set("k", "v")
	foreign := mustCommit(t, other, s)

	if !mustLoad(t, m, foreign).IsNew() {
		t.Fatalf("cookie signed by another key must not load")
	}
	if !mustLoad(t, m, &http.Cookie{Name: m.cfg.CookieName, Value: "garbage"}).IsNew() {
		t.Fatalf("garbage cookie must not load")
	}
}

func TestManager_RevokeAll(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	const uid = "01J00000000000000000000USR"

	var cookies []*http.Cookie
	for i := 0; i < 2; i++ {
		s := mustLoad(t, m, nil)
		s.SetIdentityRef(uid)
		cookies = append(cookies, mustCommit(t, m, s))
	}

	if err := m.RevokeAll(context.Background(), uid); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	for i, c := range cookies {
		if !mustLoad(t, m, c).IsNew() {
			t.Fatalf("session %d survived RevokeAll", i)
		}
	}
}

func mustRowHash(t *testing.T, s *MemoryStore, id string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		t.Fatalf("row %s not found", id)
	}
	return r.TokenHash
}

func TestManager_IssueSweepsStaleRows(t *testing.T) {
	t.Parallel()

	m, store, clock := newTestManager(t)

	s := mustLoad(t, m, nil)
	s.SetIdentityRef("01J00000000000000000000USR")
	c := mustCommit(t, m, s)

	s = mustLoad(t, m, c)
	s.Destroy()
	mustCommit(t, m, s)
	if got := store.Len(); got != 1 {
		t.Fatalf("rows after destroy=%d want 1 (revoked, not yet swept)", got)
	}

	clock.Advance(sweepInterval + time.Second)
	fresh := mustLoad(t, m, nil)
	fresh.Set("k", "v")
	mustCommit(t, m, fresh)

	if got := store.Len(); got != 1 {
		t.Fatalf("rows after sweep=%d want 1 (only the fresh session)", got)
	}
}
