package api

import (
	"net/http"
	"strings"

	"github.com/forgehq/sidecar/pkg/models"
)

// handleAdminConfig implements `GET`/`PUT /forge-admin/config/{section}`
// (§9): reads return the effective overlaid config; writes merge a patch
// onto the named section and atomically publish the result.
func (s *Server) handleAdminConfig(w http.ResponseWriter, r *http.Request) {
	section := strings.TrimPrefix(r.URL.Path, "/forge-admin/config/")
	if section == "" {
		writeError(w, http.StatusBadRequest, "section required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.cfg.Overlay.Effective())
	case http.MethodPut:
		var patch map[string]any
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.cfg.Overlay.ApplySection(section, patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.cfg.Overlay.Effective())
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or PUT only")
	}
}

// handleAdminAgents implements the supplemented agent catalog CRUD surface:
// `GET /forge-admin/agents` lists, `POST /forge-admin/agents` upserts one.
func (s *Server) handleAdminAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := s.cfg.Catalog.ListAgents(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
	case http.MethodPost:
		var a models.Agent
		if err := decodeJSON(r, &a); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if a.ID == "" {
			writeError(w, http.StatusBadRequest, "id required")
			return
		}
		if a.ToolAllowlistRaw == "" {
			a.ToolAllowlistRaw = "*"
		}
		if err := s.cfg.Catalog.UpsertAgent(r.Context(), a); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, a)
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// handleAdminTools implements the supplemented tool registry CRUD surface
// backing the request-time registry index (§3, §4.5).
func (s *Server) handleAdminTools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tools, err := s.cfg.Catalog.ListTools(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
	case http.MethodPost:
		var t models.ToolRegistryEntry
		if err := decodeJSON(r, &t); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if t.Name == "" {
			writeError(w, http.StatusBadRequest, "name required")
			return
		}
		if t.LifecycleState == "" {
			t.LifecycleState = models.ToolCandidate
		}
		if err := s.cfg.Catalog.UpsertTool(r.Context(), t); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, t)
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// verifierBindRequest is POSTed to bind an existing verifier to a tool
// ("*" binds every tool).
type verifierBindRequest struct {
	Verifier models.Verifier        `json:"verifier"`
	Bind     *models.VerifierBinding `json:"bind,omitempty"`
}

// handleAdminVerifiers implements the supplemented verifier registry CRUD
// surface, including tool bindings (§4.5).
func (s *Server) handleAdminVerifiers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		verifiers, err := s.cfg.Catalog.ListVerifiers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		bindings, err := s.cfg.Catalog.ListBindings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"verifiers": verifiers, "bindings": bindings})
	case http.MethodPost:
		var req verifierBindRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Verifier.Name == "" {
			writeError(w, http.StatusBadRequest, "verifier.name required")
			return
		}
		if err := s.cfg.Catalog.UpsertVerifier(r.Context(), req.Verifier); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if req.Bind != nil {
			if err := s.cfg.Catalog.BindVerifier(r.Context(), *req.Bind); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, req.Verifier)
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST only")
	}
}

// handleAdminPrompts implements the supplemented prompt-version surface
// (§4.2's resolveSystemPrompt fallback chain):
//   GET    /forge-admin/prompts/{agentID}           list versions
//   POST   /forge-admin/prompts/{agentID}           create a version
//   POST   /forge-admin/prompts/{agentID}/activate  activate a version
func (s *Server) handleAdminPrompts(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/forge-admin/prompts/")
	agentID, action, _ := strings.Cut(rest, "/")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent id required")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		versions, err := s.cfg.Catalog.ListPromptVersions(r.Context(), agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": versions})

	case action == "" && r.Method == http.MethodPost:
		var pv models.PromptVersion
		if err := decodeJSON(r, &pv); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if pv.Version == "" || pv.Content == "" {
			writeError(w, http.StatusBadRequest, "version and content required")
			return
		}
		if err := s.cfg.Catalog.CreatePromptVersion(r.Context(), agentID, pv); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, pv)

	case action == "activate" && r.Method == http.MethodPost:
		var body struct {
			Version string `json:"version"`
		}
		if err := decodeJSON(r, &body); err != nil || body.Version == "" {
			writeError(w, http.StatusBadRequest, "version required")
			return
		}
		if err := s.cfg.Catalog.ActivatePromptVersion(r.Context(), agentID, body.Version); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"activated": body.Version})

	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported method/path")
	}
}
