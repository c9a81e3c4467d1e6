package api

import (
	"errors"
	"net/http"

	"github.com/forgehq/sidecar/internal/reactloop"
	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/internal/sse"
)

// chatRequest is the shared body shape for `/agent-api/chat` and
// `/agent-api/chat-sync` (§6).
type chatRequest struct {
	SessionID string `json:"sessionId"`
	AgentID   string `json:"agentId"`
	Message   string `json:"message"`
}

// resolveChat authenticates, resolves the agent/tool set, ensures a session
// id, and builds the reactloop.Request shared by the streaming and
// synchronous chat handlers.
func (s *Server) resolveChat(r *http.Request, body chatRequest) (reactloop.Request, error) {
	ctx := r.Context()
	userID := userIDFromContext(ctx)

	res, err := s.resolveAgent(ctx, body.AgentID, userID)
	if err != nil {
		return reactloop.Request{}, err
	}

	sessionID := body.SessionID
	if sessionID == "" {
		sessionID, err = s.cfg.Store.CreateSession(ctx)
		if err != nil {
			return reactloop.Request{}, err
		}
	}

	return reactloop.Request{
		SessionID:   sessionID,
		AgentID:     body.AgentID,
		UserMessage: body.Message,
		Effective:   res.Effective,
		HitlLevel:   res.HitlLevel,
		Index:       res.Index,
		Window:      s.cfg.Overlay.Effective().Conversation.Window,
	}, nil
}

// tee publishes every event to the admin hub while forwarding it unchanged,
// so the admin stream never affects `/agent-api/chat`'s own cadence.
func (s *Server) tee(agentID, sessionID string, events <-chan reactloop.Event) <-chan reactloop.Event {
	out := make(chan reactloop.Event)
	go func() {
		defer close(out)
		for ev := range events {
			s.hub.publishEvent(agentID, sessionID, ev)
			out <- ev
		}
	}()
	return out
}

// handleChat streams one ReAct loop turn over SSE (§4.9, §6).
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var body chatRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.resolveChat(r, body)
	if err != nil {
		writeChatResolveError(w, err)
		return
	}

	events := s.cfg.Loop.Run(r.Context(), req)
	if err := sse.StreamChat(r.Context(), w, s.tee(req.AgentID, req.SessionID, events)); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn(r.Context(), "chat stream ended early", "error", err)
		}
	}
}

// handleChatSync runs one ReAct loop turn to completion and returns the
// aggregated result as JSON, or a 409 with resume details on a HITL pause
// (§4.9's chat-sync wrapper).
func (s *Server) handleChatSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var body chatRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req, err := s.resolveChat(r, body)
	if err != nil {
		writeChatResolveError(w, err)
		return
	}

	events := s.cfg.Loop.Run(r.Context(), req)
	result, pause, err := sse.Aggregate(r.Context(), s.tee(req.AgentID, req.SessionID, events))
	if err != nil {
		if errors.Is(err, sse.ErrHitlPause) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"resumeToken": pause.ResumeToken,
				"tool":        pause.Tool,
				"message":     pause.Message,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result.ConversationID = req.SessionID
	writeJSON(w, http.StatusOK, result)
}

// resumeRequest is the body for `/agent-api/chat/resume`: the resume token
// issued in a prior `hitl` event/409 response, plus the same agent the
// paused turn was running under (Resume re-resolves Effective/Index fresh
// rather than trusting anything client-supplied from before the pause).
type resumeRequest struct {
	ResumeToken string `json:"resumeToken"`
	AgentID     string `json:"agentId"`
}

// handleChatResume continues a HITL-paused turn after out-of-band approval
// (§4.7's resume(token) consumer). Streams over SSE like handleChat; a
// second pause mid-resume yields another `hitl` event with a fresh token.
func (s *Server) handleChatResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var body resumeRequest
	if err := decodeJSON(r, &body); err != nil || body.ResumeToken == "" {
		writeError(w, http.StatusBadRequest, "resumeToken required")
		return
	}

	ctx := r.Context()
	res, err := s.resolveAgent(ctx, body.AgentID, userIDFromContext(ctx))
	if err != nil {
		writeChatResolveError(w, err)
		return
	}

	events, err := s.cfg.Loop.Resume(ctx, body.ResumeToken, res.Effective, res.Index, res.HitlLevel)
	if err != nil {
		writeError(w, http.StatusGone, err.Error())
		return
	}
	if err := sse.StreamChat(ctx, w, s.tee(body.AgentID, "", events)); err != nil {
		if s.cfg.Logger != nil {
			s.cfg.Logger.Warn(ctx, "resume stream ended early", "error", err)
		}
	}
}

func writeChatResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, resolver.ErrAgentNotFound) {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
