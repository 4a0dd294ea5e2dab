package things

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stepgate/cmd/internal/auth/elevation"
	"stepgate/cmd/internal/web"
)

const maxFormBytes = 16 << 10

// Handler serves the things routes behind the elevation gate.
type Handler struct {
	log   *slog.Logger
	store Store
	gate  *elevation.Gate
	views *web.Renderer
	now   func() time.Time
}

// NewHandler builds the things routes; every route runs behind gate.
func NewHandler(log *slog.Logger, store Store, gate *elevation.Gate, views *web.Renderer) (*Handler, error) {
	if store == nil || gate == nil || views == nil {
		return nil, errors.New("things: missing handler dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, store: store, gate: gate, views: views, now: time.Now}, nil
}

// Register wires the home page and the things routes onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /{$}", h.gate.Protect(h.index))
	mux.HandleFunc("GET /things", h.gate.Protect(h.index))
	mux.HandleFunc("POST /things", h.gate.Protect(h.create))
	mux.HandleFunc("GET /things/{id}", h.gate.Protect(h.show))
	mux.HandleFunc("POST /things/{id}/delete", h.gate.Protect(h.destroy))
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request, p elevation.Principal) {
	h.renderIndex(w, r, p, http.StatusOK, "", nil)
}

func (h *Handler) renderIndex(w http.ResponseWriter, r *http.Request, p elevation.Principal, status int, alert string, form map[string]string) {
	list, err := h.store.List(r.Context(), p.User.ID)
	if err != nil {
		h.log.Error("things.list.fail", "user_id", p.User.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}
	h.views.Render(w, r, status, web.PageThingsIndex, web.Page{
		Title:  "Things",
		Alert:  alert,
		Viewer: p.User.Label(),
		Form:   form,
		Data:   list,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, p elevation.Principal) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.views.Error(w, r, http.StatusBadRequest, p.User.Label())
		return
	}
	name := r.PostForm.Get("name")

	t, err := h.store.Create(r.Context(), CreateInput{UserID: p.User.ID, Name: name, Now: h.now().UTC()})
	switch {
	case errors.Is(err, ErrInvalidName):
		h.renderIndex(w, r, p, http.StatusUnprocessableEntity, "Name must be between 1 and 200 characters.", map[string]string{"name": name})
		return
	case err != nil:
		h.log.Error("things.create.fail", "user_id", p.User.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}

	h.log.Info("things.create", "user_id", p.User.ID, "thing_id", t.ID)
	h.views.Redirect(w, r, "/things", http.StatusSeeOther, web.Notice("Thing was successfully created."))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request, p elevation.Principal) {
	t, err := h.store.Get(r.Context(), p.User.ID, r.PathValue("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		h.views.Error(w, r, http.StatusNotFound, p.User.Label())
		return
	case err != nil:
		h.log.Error("things.get.fail", "user_id", p.User.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}
	h.views.Render(w, r, http.StatusOK, web.PageThingShow, web.Page{
		Title:  t.Name,
		Viewer: p.User.Label(),
		Data:   t,
	})
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request, p elevation.Principal) {
	id := r.PathValue("id")
	err := h.store.Delete(r.Context(), p.User.ID, id)
	switch {
	case errors.Is(err, ErrNotFound):
		h.views.Error(w, r, http.StatusNotFound, p.User.Label())
		return
	case err != nil:
		h.log.Error("things.delete.fail", "user_id", p.User.ID, "err", err)
		h.views.Error(w, r, http.StatusInternalServerError, p.User.Label())
		return
	}

	h.log.Info("things.delete", "user_id", p.User.ID, "thing_id", id)
	h.views.Redirect(w, r, "/things", http.StatusSeeOther, web.Notice("Thing was successfully destroyed."))
}
