package web

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return rd
}

func TestFlash_WriteThenReadAndClear(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteFlash(rec, Notice("Saved"), true)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || !cookies[0].Secure {
		t.Fatalf("unexpected flash cookie: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()

	f, ok := ReadAndClearFlash(rec2, req, true)
	if !ok || f.Kind != KindNotice || f.Message != "Saved" {
		t.Fatalf("ReadAndClearFlash=(%+v,%v)", f, ok)
	}
	cleared := rec2.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("expected flash cookie to be expired, got %+v", cleared)
	}
}

func TestFlash_RejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "%%%", "bm90LWpzb24", "eyJraW5kIjoid2F0IiwibWVzc2FnZSI6IngifQ"} {
		if _, ok := decodeFlash(raw); ok {
			t.Fatalf("decodeFlash(%q) accepted", raw)
		}
	}

	rec := httptest.NewRecorder()
	WriteFlash(rec, Flash{Kind: KindAlert, Message: "   "}, false)
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("empty flash must not be written")
	}
}

func TestRenderer_RendersEveryPage(t *testing.T) {
	t.Parallel()

	rd := newTestRenderer(t)
	data := map[string]any{
		PageSecondStep:  "Enter the confirmation",
		PageThingsIndex: []struct{ ID, Name string }{{"01J", "lamp"}},
		PageThingShow: struct {
			ID, Name  string
			CreatedAt time.Time
		}{"01J", "lamp", time.Now()},
	}
	for _, name := range pageNames {
		rec := httptest.NewRecorder()
		rd.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, name, Page{Title: name, Data: data[name]})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", name, rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "<main>") {
			t.Fatalf("%s: layout not applied", name)
		}
	}
}

func TestRenderer_EscapesAndMergesFlash(t *testing.T) {
	t.Parallel()

	rd := newTestRenderer(t)

	flashRec := httptest.NewRecorder()
	WriteFlash(flashRec, Notice("Second authentication step completed"), false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(flashRec.Result().Cookies()[0])
	rec := httptest.NewRecorder()
	rd.Render(rec, req, http.StatusOK, PageSignIn, Page{Alert: "<script>x</script>", Viewer: "alice"})

	body := rec.Body.String()
	if !strings.Contains(body, "Second authentication step completed") {
		t.Fatalf("flash notice missing from body")
	}
	if strings.Contains(body, "<script>x</script>") {
		t.Fatalf("alert was not escaped")
	}
	if !strings.Contains(body, "Signed in as alice") {
		t.Fatalf("viewer missing")
	}
}

func TestRenderer_UnknownPage(t *testing.T) {
	t.Parallel()

	rd := newTestRenderer(t)
	rec := httptest.NewRecorder()
	rd.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "nope", Page{})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want 500", rec.Code)
	}
}

func TestReturnTo_RememberThenPop(t *testing.T) {
	t.Parallel()

	rd := newTestRenderer(t)
	rec := httptest.NewRecorder()
	rd.RememberReturnTo(rec, "/things?sort=name; x")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ReturnToCookieName || cookies[0].MaxAge <= 0 || !cookies[0].HttpOnly {
		t.Fatalf("unexpected return-to cookie: %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/users/sign_in", nil)
	req.AddCookie(cookies[0])
	rec2 := httptest.NewRecorder()
	if got := rd.PopReturnTo(rec2, req); got != "/things?sort=name; x" {
		t.Fatalf("PopReturnTo=%q", got)
	}
	cleared := rec2.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("expected return-to cookie to be expired, got %+v", cleared)
	}

	if got := rd.PopReturnTo(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Fatalf("PopReturnTo without cookie=%q want empty", got)
	}
}

func TestReturnTo_RejectsGarbage(t *testing.T) {
	t.Parallel()

	rd := newTestRenderer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ReturnToCookieName, Value: "%%%not-base64"})
	if got := rd.PopReturnTo(httptest.NewRecorder(), req); got != "" {
		t.Fatalf("PopReturnTo=%q want empty", got)
	}
}
