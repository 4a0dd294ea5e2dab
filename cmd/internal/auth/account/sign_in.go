package account

import (
	"net/http"
	"strings"
	"time"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/audit"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/metrics"
	"stepgate/cmd/internal/web"
)

func (h *Handler) handleSignInForm(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Load(r)
	if err == nil && s.IdentityRef() != "" {
		http.Redirect(w, r, elevation.HomePath, http.StatusFound)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageSignIn, web.Page{Title: "Sign in"})
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.views.Error(w, r, http.StatusBadRequest, "")
		return
	}

	ctx := r.Context()
	now := h.now().UTC()
	meta := h.requestMeta(r)
	login := strings.TrimSpace(r.PostForm.Get("login"))
	password := r.PostForm.Get("password")
	form := map[string]string{"login": login}

	if !h.limiter.Allow(meta.IP, now) {
		h.rateLimited(w, r, form, meta, 0)
		return
	}
	// IP-based throttling before DB lookup.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, meta.IP, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		h.views.Error(w, r, http.StatusServiceUnavailable, "")
		return
	} else if blocked {
		h.rateLimited(w, r, form, meta, retryAfter)
		return
	}

	if login == "" || password == "" {
		h.loginFailed(w, r, form, "", meta, "missing_fields")
		return
	}

	var (
		ua  identity.UserAuth
		err error
	)
	if identity.LooksLikeEmail(login) {
		ua, err = h.users.GetUserAuthByEmail(ctx, login)
	} else {
		ua, err = h.users.GetUserAuthByUsername(ctx, login)
	}
	if err != nil {
		if !identity.IsNotFound(err) {
			h.log.Error("auth.login.lookup.fail", "err", err)
			h.views.Error(w, r, http.StatusInternalServerError, "")
			return
		}
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(password, h.dummyHash)
		}
		h.loginFailed(w, r, form, "", meta, "not_found")
		return
	}

	okPw, err := identity.VerifyPassword(password, ua.PasswordHash)
	if err != nil || !okPw {
		if err != nil {
			h.log.Warn("auth.login.verify.fail", "user_id", ua.User.ID, "err", err)
		}
		h.loginFailed(w, r, form, ua.User.ID, meta, "bad_password")
		return
	}

	s, err := h.sessions.Load(r)
	if err != nil {
		h.log.Error("auth.session.load.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	returnTo := h.views.PopReturnTo(w, r)
	// A new sign-in never inherits an earlier elevation.
	elevation.Begin(s)
	s.SetIdentityRef(ua.User.ID)
	if err := h.sessions.Commit(w, r, s, meta); err != nil {
		h.log.Error("auth.login.issue_session.fail", "user_id", ua.User.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}

	h.record(r, audit.ActionLoginSuccess, ua.User.ID, s.ID(), meta, nil)
	h.metrics.SignIn(metrics.SignInSuccess)
	h.log.Info("auth.login.success", "user_id", ua.User.ID, "session_id", s.ID())

	target := elevation.HomePath
	if p, ok := safeReturnPath(returnTo); ok {
		target = p
	}
	h.views.Redirect(w, r, target, http.StatusSeeOther, web.Notice(msgSignedIn))
}

func (h *Handler) loginFailed(w http.ResponseWriter, r *http.Request, form map[string]string, userID string, meta session.RequestMeta, reason string) {
	h.record(r, audit.ActionLoginFailed, userID, "", meta, map[string]any{"reason": reason})
	h.metrics.SignIn(metrics.SignInFailed)
	h.log.Info("auth.login.failed", "reason", reason, "ip", meta.IP)
	h.views.Render(w, r, http.StatusOK, web.PageSignIn, web.Page{Title: "Sign in", Alert: msgInvalidLogin, Form: form})
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, form map[string]string, meta session.RequestMeta, retryAfter time.Duration) {
	h.record(r, audit.ActionLoginRateLimited, "", "", meta, nil)
	h.metrics.SignIn(metrics.SignInRateLimited)
	h.log.Warn("auth.login.rate_limited", "ip", meta.IP)
	setRetryAfter(w, retryAfter)
	h.views.Render(w, r, http.StatusTooManyRequests, web.PageSignIn, web.Page{Title: "Sign in", Alert: msgRateLimited, Form: form})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.views.Error(w, r, http.StatusBadRequest, "")
		return
	}

	s, err := h.sessions.Load(r)
	if err != nil {
		h.log.Error("auth.session.load.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	meta := h.requestMeta(r)

	if uid := s.IdentityRef(); uid != "" {
		action := audit.ActionLogout
		if everywhere(r.PostForm.Get("everywhere")) {
			if err := h.sessions.RevokeAll(r.Context(), uid); err != nil {
				h.log.Error("auth.logout_all.fail", "user_id", uid, "err", err)
				h.views.Error(w, r, http.StatusInternalServerError, "")
				return
			}
			action = audit.ActionLogoutAll
		}
		h.record(r, action, uid, s.ID(), meta, nil)
		h.log.Info(action, "user_id", uid, "session_id", s.ID())
	}

	s.Destroy()
	if err := h.sessions.Commit(w, r, s, meta); err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	h.views.Redirect(w, r, SignInPath, http.StatusSeeOther, web.Notice(msgSignedOut))
}

func everywhere(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
