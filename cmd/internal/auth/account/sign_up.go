package account

import (
	"errors"
	"net/http"
	"strings"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/audit"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/web"
)

func (h *Handler) handleSignUpForm(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Load(r)
	if err == nil && s.IdentityRef() != "" {
		http.Redirect(w, r, elevation.HomePath, http.StatusFound)
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageSignUp, web.Page{Title: "Sign up"})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.views.Error(w, r, http.StatusBadRequest, "")
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	form := map[string]string{"username": username, "email": email}

	if password != r.PostForm.Get("password_confirmation") {
		h.signUpInvalid(w, r, form, "Password confirmation doesn't match Password.")
		return
	}

	ctx := r.Context()
	res, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username: optional(username),
		Email:    optional(email),
		Password: password,
		Now:      h.now().UTC(),
	})
	if err != nil {
		if msg, ok := signUpMessage(err); ok {
			h.signUpInvalid(w, r, form, msg)
			return
		}
		h.log.Error("auth.signup.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	u := res.User

	s, err := h.sessions.Load(r)
	if err != nil {
		h.log.Error("auth.session.load.fail", "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}
	meta := h.requestMeta(r)
	_ = h.views.PopReturnTo(w, r)
	elevation.Begin(s)
	s.SetIdentityRef(u.ID)
	if err := h.sessions.Commit(w, r, s, meta); err != nil {
		h.log.Error("auth.signup.issue_session.fail", "user_id", u.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, "")
		return
	}

	h.record(r, audit.ActionSignUp, u.ID, s.ID(), meta, nil)
	h.log.Info("auth.signup.success", "user_id", u.ID)
	h.views.Redirect(w, r, elevation.HomePath, http.StatusSeeOther, web.Notice(msgSignedUp))
}

func (h *Handler) signUpInvalid(w http.ResponseWriter, r *http.Request, form map[string]string, msg string) {
	h.views.Render(w, r, http.StatusUnprocessableEntity, web.PageSignUp, web.Page{Title: "Sign up", Alert: msg, Form: form})
}

// signUpMessage maps a user-facing CreateUser failure to a form alert.
func signUpMessage(err error) (string, bool) {
	if identity.IsConflict(err) {
		switch identity.ConflictField(err) {
		case "username":
			return "Username has already been taken.", true
		case "email":
			return "Email has already been taken.", true
		default:
			return "Account already exists.", true
		}
	}
	var opErr identity.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Kind, identity.ErrInvalidInput) {
		if opErr.Msg == "" {
			return "Invalid sign-up details.", true
		}
		return strings.ToUpper(opErr.Msg[:1]) + opErr.Msg[1:] + ".", true
	}
	return "", false
}
