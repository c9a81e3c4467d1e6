package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgehq/sidecar/internal/reactloop"
)

// adminUpgrader accepts the admin websocket tap connection. Origin checking
// is left to the admin bearer check in front of it (adminMiddleware), not
// CORS — this endpoint is never called from a browser origin directly.
var adminUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// adminFrame is one event broadcast to connected admin stream clients.
type adminFrame struct {
	Type      string `json:"type"`
	AgentID   string `json:"agentId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Tool      string `json:"tool,omitempty"`
	Message   string `json:"message,omitempty"`
}

// adminHub fans out loop lifecycle events to every connected admin stream
// client (§9's supplemented live-activity view). Slow or disconnected
// subscribers never block a publisher: a full outbound buffer drops the
// subscriber instead of backing up the loop.
type adminHub struct {
	mu          sync.Mutex
	subscribers map[chan adminFrame]struct{}
}

func newAdminHub() *adminHub {
	return &adminHub{subscribers: make(map[chan adminFrame]struct{})}
}

func (h *adminHub) subscribe() chan adminFrame {
	ch := make(chan adminFrame, 32)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *adminHub) unsubscribe(ch chan adminFrame) {
	h.mu.Lock()
	delete(h.subscribers, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *adminHub) publish(frame adminFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
}

// publishEvent translates one reactloop.Event into an adminFrame, skipping
// plain text chunks (too high-volume to be useful on the admin tap).
func (h *adminHub) publishEvent(agentID, sessionID string, ev reactloop.Event) {
	switch ev.Type {
	case reactloop.EventToolCall:
		h.publish(adminFrame{Type: "tool_call", AgentID: agentID, SessionID: sessionID, Tool: ev.ToolCallName})
	case reactloop.EventToolResult:
		h.publish(adminFrame{Type: "tool_result", AgentID: agentID, SessionID: sessionID})
	case reactloop.EventToolWarning:
		h.publish(adminFrame{Type: "tool_warning", AgentID: agentID, SessionID: sessionID, Tool: ev.WarningTool, Message: ev.WarningMessage})
	case reactloop.EventHitl:
		h.publish(adminFrame{Type: "hitl", AgentID: agentID, SessionID: sessionID, Tool: ev.HitlTool, Message: ev.HitlMessage})
	case reactloop.EventError:
		h.publish(adminFrame{Type: "error", AgentID: agentID, SessionID: sessionID, Message: ev.ErrorMessage})
	case reactloop.EventDone:
		h.publish(adminFrame{Type: "done", AgentID: agentID, SessionID: sessionID})
	}
}

// handleAdminStream upgrades to a websocket and relays every published
// frame as JSON text until the client disconnects.
func (s *Server) handleAdminStream(w http.ResponseWriter, r *http.Request) {
	conn, err := adminUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe()
	defer s.hub.unsubscribe(ch)

	conn.SetReadDeadline(time.Now().Add(time.Hour))
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for frame := range ch {
		data, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
