package elevation

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/audit"
	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/metrics"
	"stepgate/cmd/internal/web"
)

// Routes.
const (
	EntryPath   = "/second_steps/new"
	ConfirmPath = "/second_steps"
	HomePath    = "/"
)

// CompletedNotice is flashed after a successful confirmation.
const CompletedNotice = "Second authentication step completed"

const defaultMaxBodyBytes = 64 << 10

// Principal is a primary-authenticated caller: the identity plus its browser session.
type Principal struct {
	User    identity.User
	Session *session.Session
	Meta    session.RequestMeta
}

// Authenticator performs primary authentication. When it returns false it has
// already written a response (normally a redirect to sign-in).
type Authenticator interface {
	EnsurePrimaryAuthenticated(w http.ResponseWriter, r *http.Request) (Principal, bool)
}

// Committer persists session changes. *session.Manager satisfies it.
type Committer interface {
	Commit(w http.ResponseWriter, r *http.Request, s *session.Session, meta session.RequestMeta) error
}

// HandlerFunc is a handler that runs only for elevated callers.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, p Principal)

// Gate guards protected handlers and serves the second-step routes.
type Gate struct {
	log      *slog.Logger
	auth     Authenticator
	sessions Committer
	verifier Verifier
	views    *web.Renderer
	audit    audit.Recorder
	metrics  *metrics.Metrics

	maxBodyBytes int64
	now          func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithAudit records begin/confirm events.
func WithAudit(rec audit.Recorder) Option {
	return func(g *Gate) {
		if rec != nil {
			g.audit = rec
		}
	}
}

// WithMetrics counts guard and confirmation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithMaxBodyBytes caps the confirmation form body.
func WithMaxBodyBytes(n int64) Option {
	return func(g *Gate) {
		if n > 0 {
			g.maxBodyBytes = n
		}
	}
}

// NewGate constructs a Gate.
func NewGate(log *slog.Logger, auth Authenticator, sessions Committer, verifier Verifier, views *web.Renderer, opts ...Option) (*Gate, error) {
	if auth == nil || sessions == nil || verifier == nil || views == nil {
		return nil, errors.New("elevation: missing gate dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	g := &Gate{
		log:          log,
		auth:         auth,
		sessions:     sessions,
		verifier:     verifier,
		views:        views,
		audit:        audit.NewLogRecorder(log),
		maxBodyBytes: defaultMaxBodyBytes,
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

// Register wires the second-step routes onto mux.
func (g *Gate) Register(mux *http.ServeMux) {
	if g == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET "+EntryPath, g.handleEntry)
	mux.HandleFunc("POST "+ConfirmPath, g.handleConfirm)
}

// RequireElevatedSession lets an elevated caller through. Otherwise it
// redirects to the entry route and returns false; the session is not touched.
func (g *Gate) RequireElevatedSession(w http.ResponseWriter, r *http.Request, p Principal) bool {
	if IsElevated(p.User.ElevationSecret, p.Session) {
		g.metrics.Elevation(metrics.ElevationGuardPassed)
		return true
	}
	g.metrics.Elevation(metrics.ElevationGuardRedirect)
	g.log.Debug("elevation.guard.redirect", "user_id", p.User.ID, "path", r.URL.Path)
	http.Redirect(w, r, EntryPath, http.StatusFound)
	return false
}

// Protect wraps next with primary authentication and the elevation guard.
func (g *Gate) Protect(next HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.auth.EnsurePrimaryAuthenticated(w, r)
		if !ok {
			return
		}
		if !g.RequireElevatedSession(w, r, p) {
			return
		}
		next(w, r, p)
	}
}

func (g *Gate) handleEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := g.auth.EnsurePrimaryAuthenticated(w, r)
	if !ok {
		return
	}

	Begin(p.Session)
	if err := g.sessions.Commit(w, r, p.Session, p.Meta); err != nil {
		g.log.Error("elevation.begin.commit_fail", "user_id", p.User.ID, "err", err)
		g.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}

	g.record(r, audit.ActionElevationBegin, p)
	g.metrics.Elevation(metrics.ElevationBegin)
	g.renderForm(w, r, p, "")
}

func (g *Gate) handleConfirm(w http.ResponseWriter, r *http.Request) {
	p, ok := g.auth.EnsurePrimaryAuthenticated(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, g.maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		g.log.Info("elevation.confirm.bad_form", "user_id", p.User.ID, "err", err)
		g.views.Error(w, r, http.StatusBadRequest, p.User.Label())
		return
	}

	if !g.verifier.Verify(r.Context(), p.User, confirmationValue(r)) {
		g.record(r, audit.ActionElevationMismatch, p)
		g.metrics.Elevation(metrics.ElevationConfirmFailure)
		g.log.Info("elevation.confirm.mismatch", "user_id", p.User.ID)
		g.renderForm(w, r, p, g.verifier.MismatchAlert())
		return
	}

	if err := Elevate(p.User.ElevationSecret, p.Session); err != nil {
		g.log.Error("elevation.confirm.no_secret", "user_id", p.User.ID)
		g.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}
	if err := g.sessions.Commit(w, r, p.Session, p.Meta); err != nil {
		g.log.Error("elevation.confirm.commit_fail", "user_id", p.User.ID, "err", err)
		g.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}

	g.record(r, audit.ActionElevationConfirmed, p)
	g.metrics.Elevation(metrics.ElevationConfirmSuccess)
	g.log.Info("elevation.confirm.success", "user_id", p.User.ID, "session_id", p.Session.ID())
	g.views.Redirect(w, r, HomePath, http.StatusSeeOther, web.Notice(CompletedNotice))
}

// confirmationValue reads "confirmation", falling back to the legacy "foo" field.
func confirmationValue(r *http.Request) string {
	if v, ok := r.PostForm["confirmation"]; ok && len(v) > 0 {
		return v[0]
	}
	return r.PostForm.Get("foo")
}

func (g *Gate) renderForm(w http.ResponseWriter, r *http.Request, p Principal, alert string) {
	g.views.Render(w, r, http.StatusOK, web.PageSecondStep, web.Page{
		Title:  "Second step",
		Alert:  alert,
		Viewer: p.User.Label(),
		Data:   g.verifier.Prompt(),
	})
}

func (g *Gate) record(r *http.Request, action string, p Principal) {
	g.audit.Record(r.Context(), audit.Event{
		Action:    action,
		UserID:    p.User.ID,
		SessionID: p.Session.ID(),
		IP:        p.Meta.IP,
		UserAgent: p.Meta.UserAgent,
		At:        g.now().UTC(),
	})
}
