package api

import (
	"net/http"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/pkg/models"
)

// preferencesBody is the wire shape for `GET`/`PUT /agent-api/preferences`
// (§6). Both fields are optional on write; an absent field leaves the
// stored preference untouched.
type preferencesBody struct {
	Model     *string `json:"model,omitempty"`
	HitlLevel *string `json:"hitlLevel,omitempty"`
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "preferences require an authenticated user")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, err := s.cfg.Catalog.GetPreferences(r.Context(), userID)
		if err != nil {
			if err == agent.ErrNotFound {
				writeJSON(w, http.StatusOK, preferencesBody{})
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		body := preferencesBody{Model: p.Model}
		if p.HitlLevel != nil {
			level := string(*p.HitlLevel)
			body.HitlLevel = &level
		}
		writeJSON(w, http.StatusOK, body)

	case http.MethodPut:
		var body preferencesBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		prefs := models.UserPreferences{UserID: userID, Model: body.Model}
		if body.HitlLevel != nil {
			level := models.HitlLevel(*body.HitlLevel)
			if !models.ValidHitlLevel(level) {
				writeError(w, http.StatusBadRequest, "invalid hitlLevel")
				return
			}
			prefs.HitlLevel = &level
		}
		if err := s.cfg.Catalog.SavePreferences(r.Context(), prefs); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, body)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or PUT only")
	}
}
