// Package web renders stepgate's HTML pages and carries flash messages.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names.
const (
	PageSignIn      = "sign_in"
	PageSignUp      = "sign_up"
	PageSecondStep  = "second_step"
	PageThingsIndex = "things_index"
	PageThingShow   = "thing_show"
	PageError       = "error"
)

var pageNames = []string{PageSignIn, PageSignUp, PageSecondStep, PageThingsIndex, PageThingShow, PageError}

// Page is the data every template receives.
type Page struct {
	Title  string
	Notice string
	Alert  string
	// Viewer is the signed-in user's display label; empty when anonymous.
	Viewer string
	// Form holds sticky form values (never passwords).
	Form map[string]string
	Data any
}

// Renderer executes the embedded page templates.
type Renderer struct {
	log          *slog.Logger
	pages        map[string]*template.Template
	secureCookie bool
}

// NewRenderer parses every page template up front.
func NewRenderer(log *slog.Logger, secureCookie bool) (*Renderer, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Renderer{log: log, pages: make(map[string]*template.Template, len(pageNames)), secureCookie: secureCookie}
	for _, name := range pageNames {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page name with status. A pending flash is consumed unless p
// already carries a message of the same kind.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	if f, ok := ReadAndClearFlash(w, r, rd.secureCookie); ok {
		switch {
		case f.Kind == KindNotice && p.Notice == "":
			p.Notice = f.Message
		case f.Kind == KindAlert && p.Alert == "":
			p.Alert = f.Message
		}
	}

	t, ok := rd.pages[name]
	if !ok {
		rd.log.Error("web.render.unknown_page", "page", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		rd.log.Error("web.render.fail", "page", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error renders the generic error page.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, viewer string) {
	rd.Render(w, r, status, PageError, Page{Title: http.StatusText(status), Viewer: viewer})
}

// Redirect writes f (when non-empty) and redirects to target.
func (rd *Renderer) Redirect(w http.ResponseWriter, r *http.Request, target string, status int, f Flash) {
	WriteFlash(w, f, rd.secureCookie)
	http.Redirect(w, r, target, status)
}
