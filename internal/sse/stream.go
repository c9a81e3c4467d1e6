package sse

import (
	"context"
	"net/http"

	"github.com/forgehq/sidecar/internal/reactloop"
)

// textPayload, toolCallPayload, etc. are the exact wire shapes named in
// §4.4/§6 for each event tag.
type textPayload struct {
	Text string `json:"text"`
}
type toolCallPayload struct {
	ID   string                 `json:"id"`
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}
type toolResultPayload struct {
	ID     string                 `json:"id"`
	Result map[string]interface{} `json:"result"`
}
type toolWarningPayload struct {
	Tool     string `json:"tool"`
	Message  string `json:"message"`
	Verifier string `json:"verifier,omitempty"`
}
type hitlPayload struct {
	ResumeToken string `json:"resumeToken"`
	Tool        string `json:"tool"`
	Message     string `json:"message"`
	Verifier    string `json:"verifier,omitempty"`
}
type errorPayload struct {
	Message string `json:"message"`
}
type donePayload struct {
	Usage usagePayload `json:"usage"`
}
type usagePayload struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// StreamChat drains events onto w as framed SSE records (§4.4 tag set,
// §4.9 framing). The request's own context cancellation is what causes the
// driver to stop producing further events on client disconnect; StreamChat
// simply stops forwarding once the channel closes or ctx is done.
func StreamChat(ctx context.Context, w http.ResponseWriter, events <-chan reactloop.Event) error {
	sw, err := Init(w)
	if err != nil {
		return err
	}
	defer sw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := emit(sw, ev); err != nil {
				return err
			}
		}
	}
}

func emit(sw *Writer, ev reactloop.Event) error {
	switch ev.Type {
	case reactloop.EventText:
		return sw.Emit("text", textPayload{Text: ev.Text})
	case reactloop.EventToolCall:
		return sw.Emit("tool_call", toolCallPayload{ID: ev.ToolCallID, Tool: ev.ToolCallName, Args: ev.ToolCallArgs})
	case reactloop.EventToolResult:
		return sw.Emit("tool_result", toolResultPayload{ID: ev.ToolResultID, Result: ev.ToolResultData})
	case reactloop.EventToolWarning:
		return sw.Emit("tool_warning", toolWarningPayload{Tool: ev.WarningTool, Message: ev.WarningMessage, Verifier: ev.WarningVerifier})
	case reactloop.EventHitl:
		return sw.Emit("hitl", hitlPayload{ResumeToken: ev.ResumeToken, Tool: ev.HitlTool, Message: ev.HitlMessage, Verifier: ev.HitlVerifier})
	case reactloop.EventError:
		return sw.Emit("error", errorPayload{Message: ev.ErrorMessage})
	case reactloop.EventDone:
		return sw.Emit("done", donePayload{Usage: usagePayload{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens}})
	default:
		return nil
	}
}
