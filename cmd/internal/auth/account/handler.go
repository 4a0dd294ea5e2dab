package account

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/audit"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/metrics"
	"stepgate/cmd/internal/web"
)

// Routes.
const (
	SignUpPath  = "/users/sign_up"
	UsersPath   = "/users"
	SignInPath  = "/users/sign_in"
	SignOutPath = "/users/sign_out"
	MePath      = "/me"
)

const (
	msgSignInRequired = "You need to sign in or sign up before continuing."
	msgInvalidLogin   = "Invalid login or password."
	msgRateLimited    = "Too many sign-in attempts. Try again later."
	msgSignedIn       = "Signed in successfully."
	msgSignedUp       = "Welcome! You have signed up successfully."
	msgSignedOut      = "Signed out successfully."
)

// Handler serves the account routes and implements elevation.Authenticator.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Manager
	views    *web.Renderer

	audit    audit.Recorder
	failures audit.FailureCounter
	limiter  *ipLimiter
	metrics  *metrics.Metrics
	now      func() time.Time

	dummyHash string
}

// HandlerOption configures optional account handler dependencies.
type HandlerOption func(*Handler)

// WithAudit sets the audit sink and the failure counter used for IP throttling.
func WithAudit(rec audit.Recorder, failures audit.FailureCounter) HandlerOption {
	return func(h *Handler) {
		if rec != nil {
			h.audit = rec
		}
		if failures != nil {
			h.failures = failures
		}
	}
}

// WithMetrics counts sign-in outcomes.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler constructs an account Handler. Without WithAudit, events are kept
// in memory and also back the sign-in throttle.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Manager, views *web.Renderer, opts ...HandlerOption) (*Handler, error) {
	if users == nil || sessions == nil || views == nil {
		return nil, errors.New("account: missing handler dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	mem := audit.NewMemoryRecorder(0)
	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		views:    views,
		audit:    mem,
		failures: mem,
		limiter:  newIPLimiter(cfg.LoginRatePerMinute, cfg.LoginBurst),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}
	return h, nil
}

// Register wires account routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET "+SignUpPath, h.handleSignUpForm)
	mux.HandleFunc("POST "+UsersPath, h.handleSignUp)
	mux.HandleFunc("GET "+SignInPath, h.handleSignInForm)
	mux.HandleFunc("POST "+SignInPath, h.handleSignIn)
	mux.HandleFunc("POST "+SignOutPath, h.handleSignOut)
	mux.HandleFunc("GET "+MePath, h.handleMe)
}

// EnsurePrimaryAuthenticated resolves the signed-in user. Anonymous callers are
// redirected to sign-in (GET paths are remembered) and false is returned.
func (h *Handler) EnsurePrimaryAuthenticated(w http.ResponseWriter, r *http.Request) (elevation.Principal, bool) {
	ctx := r.Context()

	s, err := h.sessions.Load(r)
	if err != nil {
		h.log.Error("auth.session.load.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return elevation.Principal{}, false
	}
	meta := h.requestMeta(r)

	uid := s.IdentityRef()
	if uid == "" {
		h.redirectToSignIn(w, r)
		return elevation.Principal{}, false
	}

	u, err := h.users.GetUserByID(ctx, uid)
	switch {
	case identity.IsNotFound(err):
		h.log.Warn("auth.session.orphaned", "user_id", uid, "session_id", s.ID())
		s.Destroy()
		if err := h.sessions.Commit(w, r, s, meta); err != nil {
			h.log.Error("auth.session.commit.fail", "err", err)
		}
		h.redirectToSignIn(w, r)
		return elevation.Principal{}, false
	case err != nil:
		h.log.Error("auth.user.load.fail", "user_id", uid, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return elevation.Principal{}, false
	}

	if u.ElevationSecret == "" {
		saved, err := h.users.SaveUser(ctx, identity.SaveUserInput{UserID: u.ID, DisplayName: u.DisplayName})
		if err != nil {
			h.log.Error("auth.user.backfill_secret.fail", "user_id", u.ID, "err", err)
			h.views.Error(w, r, http.StatusInternalServerError, u.Label())
			return elevation.Principal{}, false
		}
		h.log.Info("auth.user.backfill_secret", "user_id", u.ID)
		u = saved
	}

	return elevation.Principal{User: u, Session: s, Meta: meta}, true
}

// redirectToSignIn remembers the requested GET path in a cookie, never in the
// session store, and sends the caller to sign-in.
func (h *Handler) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if p, ok := safeReturnPath(r.URL.RequestURI()); ok {
			h.views.RememberReturnTo(w, p)
		}
	}
	h.views.Redirect(w, r, SignInPath, http.StatusFound, web.Alert(msgSignInRequired))
}

func (h *Handler) record(r *http.Request, action, userID, sessionID string, meta session.RequestMeta, extra map[string]any) {
	h.audit.Record(r.Context(), audit.Event{
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Meta:      extra,
		At:        h.now().UTC(),
	})
}
