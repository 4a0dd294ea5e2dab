package web

import (
	"encoding/base64"
	"net/http"
	"time"
)

// ReturnToCookieName carries the page an anonymous visitor asked for across
// sign-in. It lives in its own cookie so anonymous traffic never creates
// server-side session rows.
const ReturnToCookieName = "stepgate_return_to"

const returnToTTL = 10 * time.Minute

// RememberReturnTo stores path for the next successful sign-in. Callers pass
// an already validated local path.
func (rd *Renderer) RememberReturnTo(w http.ResponseWriter, path string) {
	if w == nil || path == "" || len(path) > 1024 {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnToCookieName,
		Value:    base64.RawURLEncoding.EncodeToString([]byte(path)),
		Path:     "/",
		MaxAge:   int(returnToTTL / time.Second),
		HttpOnly: true,
		Secure:   rd.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopReturnTo returns the remembered path, if any, and expires its cookie.
// The value is client-controlled and must be validated again before use.
func (rd *Renderer) PopReturnTo(w http.ResponseWriter, r *http.Request) string {
	if r == nil {
		return ""
	}
	c, err := r.Cookie(ReturnToCookieName)
	if err != nil {
		return ""
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     ReturnToCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   rd.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if len(c.Value) > 2048 {
		return ""
	}
	b, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return ""
	}
	return string(b)
}
