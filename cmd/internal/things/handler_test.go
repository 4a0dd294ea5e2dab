package things

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/auth/session"
	"stepgate/cmd/internal/web"
)

// stubAuth authenticates every request as user, elevated or not.
type stubAuth struct {
	user     identity.User
	elevated bool
}

func (a *stubAuth) EnsurePrimaryAuthenticated(_ http.ResponseWriter, _ *http.Request) (elevation.Principal, bool) {
	s := session.NewSession()
	if a.elevated {
		s.Set(elevation.TokenKey, a.user.ElevationSecret)
	}
	return elevation.Principal{User: a.user, Session: s}, true
}

type nopCommitter struct{}

func (nopCommitter) Commit(http.ResponseWriter, *http.Request, *session.Session, session.RequestMeta) error {
	return nil
}

func newTestMux(t *testing.T, auth *stubAuth) (*http.ServeMux, *MemoryStore) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	views, err := web.NewRenderer(log, false)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	gate, err := elevation.NewGate(log, auth, nopCommitter{}, elevation.PassphraseVerifier{Passphrase: "Foo"}, views)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	store := NewMemoryStore()
	h, err := NewHandler(log, store, gate, views)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return mux, store
}

func serve(mux *http.ServeMux, method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestEveryRouteRequiresElevation(t *testing.T) {
	t.Parallel()

	mux, store := newTestMux(t, &stubAuth{user: identity.User{ID: "U1", ElevationSecret: "abc123"}})
	th, err := store.Create(context.Background(), CreateInput{UserID: "U1", Name: "kept"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := []struct {
		method, target string
		form           url.Values
	}{
		{http.MethodGet, "/", nil},
		{http.MethodGet, "/things", nil},
		{http.MethodPost, "/things", url.Values{"name": {"new"}}},
		{http.MethodGet, "/things/" + th.ID, nil},
		{http.MethodPost, "/things/" + th.ID + "/delete", url.Values{}},
	}
	for _, tc := range cases {
		rec := serve(mux, tc.method, tc.target, tc.form)
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != elevation.EntryPath {
			t.Fatalf("%s %s: status=%d Location=%q want 302 %s", tc.method, tc.target, rec.Code, rec.Header().Get("Location"), elevation.EntryPath)
		}
	}

	list, _ := store.List(context.Background(), "U1")
	if len(list) != 1 {
		t.Fatalf("unelevated requests changed data: %+v", list)
	}
}

func TestCreateListShowDelete(t *testing.T) {
	t.Parallel()

	mux, store := newTestMux(t, &stubAuth{user: identity.User{ID: "U1", ElevationSecret: "abc123"}, elevated: true})

	rec := serve(mux, http.MethodPost, "/things", url.Values{"name": {"Widget <b>"}})
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/things" {
		t.Fatalf("create status=%d Location=%q", rec.Code, rec.Header().Get("Location"))
	}

	rec = serve(mux, http.MethodGet, "/things", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("index status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Widget &lt;b&gt;") {
		t.Fatalf("index missing escaped name: %s", rec.Body.String())
	}

	list, _ := store.List(context.Background(), "U1")
	if len(list) != 1 {
		t.Fatalf("list len=%d want 1", len(list))
	}
	id := list[0].ID

	rec = serve(mux, http.MethodGet, "/things/"+id, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/things/"+id+"/delete") {
		t.Fatalf("show status=%d", rec.Code)
	}

	rec = serve(mux, http.MethodPost, "/things/"+id+"/delete", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("delete status=%d", rec.Code)
	}
	if rec = serve(mux, http.MethodGet, "/things/"+id, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("show after delete status=%d want 404", rec.Code)
	}
}

func TestForeignThingIsNotFound(t *testing.T) {
	t.Parallel()

	mux, store := newTestMux(t, &stubAuth{user: identity.User{ID: "U1", ElevationSecret: "abc123"}, elevated: true})
	foreign, err := store.Create(context.Background(), CreateInput{UserID: "U2", Name: "theirs"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if rec := serve(mux, http.MethodGet, "/things/"+foreign.ID, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("show status=%d want 404", rec.Code)
	}
	if rec := serve(mux, http.MethodPost, "/things/"+foreign.ID+"/delete", url.Values{}); rec.Code != http.StatusNotFound {
		t.Fatalf("delete status=%d want 404", rec.Code)
	}
	if _, err := store.Get(context.Background(), "U2", foreign.ID); err != nil {
		t.Fatalf("foreign thing deleted: %v", err)
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	t.Parallel()

	mux, _ := newTestMux(t, &stubAuth{user: identity.User{ID: "U1", ElevationSecret: "abc123"}, elevated: true})

	rec := serve(mux, http.MethodPost, "/things", url.Values{"name": {"   "}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Name must be between 1 and 200 characters.") {
		t.Fatalf("alert missing: %s", rec.Body.String())
	}
}
