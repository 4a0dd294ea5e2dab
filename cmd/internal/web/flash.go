package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
)

// FlashCookieName is the cookie carrying one-time notices across a redirect.
const FlashCookieName = "stepgate_flash"

// Kind classifies a flash message.
type Kind string

const (
	KindNotice Kind = "notice"
	KindAlert  Kind = "alert"
)

// Flash is a one-time message shown on the next render.
type Flash struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Notice builds a success flash.
func Notice(msg string) Flash { return Flash{Kind: KindNotice, Message: msg} }

// Alert builds a failure flash.
func Alert(msg string) Flash { return Flash{Kind: KindAlert, Message: msg} }

// WriteFlash stores f for the next page render.
func WriteFlash(w http.ResponseWriter, f Flash, secure bool) {
	f, ok := normalizeFlash(f)
	if !ok || w == nil {
		return
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadAndClearFlash reads the pending flash, if any, and expires its cookie.
func ReadAndClearFlash(w http.ResponseWriter, r *http.Request, secure bool) (Flash, bool) {
	if r == nil {
		return Flash{}, false
	}
	c, err := r.Cookie(FlashCookieName)
	if err != nil {
		return Flash{}, false
	}
	if w != nil {
		http.SetCookie(w, &http.Cookie{
			Name:     FlashCookieName,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
	return decodeFlash(c.Value)
}

func decodeFlash(raw string) (Flash, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 2048 {
		return Flash{}, false
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Flash{}, false
	}
	var f Flash
	if err := json.Unmarshal(b, &f); err != nil {
		return Flash{}, false
	}
	return normalizeFlash(f)
}

func normalizeFlash(f Flash) (Flash, bool) {
	f.Message = strings.TrimSpace(f.Message)
	if f.Message == "" {
		return Flash{}, false
	}
	switch f.Kind {
	case KindNotice, KindAlert:
		return f, true
	default:
		return Flash{}, false
	}
}
