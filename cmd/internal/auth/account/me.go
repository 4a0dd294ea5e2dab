package account

import (
	"net/http"

	"stepgate/cmd/identity"
	"stepgate/cmd/internal/auth/elevation"
)

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Load(r)
	if err != nil {
		h.log.Error("auth.session.load.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	uid := s.IdentityRef()
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
		return
	}

	u, err := h.users.GetUserByID(r.Context(), uid)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "sign in required")
			return
		}
		h.log.Error("auth.me.fail", "user_id", uid, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:     toUserResponse(u),
		Elevated: elevation.IsElevated(u.ElevationSecret, s),
	})
}
