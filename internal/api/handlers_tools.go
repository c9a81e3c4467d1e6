package api

import "net/http"

// handleTools returns the tool set visible to the named (or default)
// agent's allowlist (§6 `GET /agent-api/tools`).
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	agentID := r.URL.Query().Get("agent")
	res, err := s.resolveAgent(r.Context(), agentID, userIDFromContext(r.Context()))
	if err != nil {
		writeChatResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": res.Effective.ToolSet})
}
