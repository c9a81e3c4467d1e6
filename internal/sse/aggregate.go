package sse

import (
	"context"
	"errors"

	"github.com/forgehq/sidecar/internal/reactloop"
)

// ToolCallRecord is one paired tool_call/tool_result in a chat-sync response.
type ToolCallRecord struct {
	ID     string                 `json:"id"`
	Tool   string                 `json:"name"`
	Args   map[string]interface{} `json:"args"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// Warning is one accumulated tool_warning.
type Warning struct {
	Tool     string `json:"tool"`
	Message  string `json:"message"`
	Verifier string `json:"verifier,omitempty"`
}

// SyncResult is the chat-sync response shape (§4.9, §6). ConversationID is
// left empty by Aggregate (it has no session id of its own to put there)
// and populated by the chat-sync handler once aggregation completes.
type SyncResult struct {
	ConversationID string           `json:"conversationId"`
	Message        string           `json:"message"`
	ToolCalls      []ToolCallRecord `json:"toolCalls"`
	Warnings       []Warning        `json:"warnings"`
	Flags          []string         `json:"flags"`
}

// ErrHitlPause signals that the loop paused mid-run; the caller (the
// chat-sync HTTP handler) must respond 409 with Pause populated instead of
// the usual 200 SyncResult.
var ErrHitlPause = errors.New("sse: loop paused for hitl")

// Pause carries the 409 chat-sync body when ErrHitlPause is returned.
type Pause struct {
	ResumeToken string `json:"resumeToken"`
	Tool        string `json:"tool"`
	Message     string `json:"message"`
}

// Aggregate drains events, concatenating text, pairing tool_call/tool_result
// by id, and accumulating warnings/flags, per §4.9's chat-sync semantics.
// An LLM-provider error does not abort aggregation (it's recorded as a flag
// and 200 is still returned); a hitl event short-circuits with ErrHitlPause.
func Aggregate(ctx context.Context, events <-chan reactloop.Event) (SyncResult, *Pause, error) {
	result := SyncResult{ToolCalls: []ToolCallRecord{}, Warnings: []Warning{}, Flags: []string{}}
	byID := map[string]int{}

	for {
		select {
		case <-ctx.Done():
			return result, nil, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return result, nil, nil
			}
			switch ev.Type {
			case reactloop.EventText:
				result.Message += ev.Text
			case reactloop.EventToolCall:
				byID[ev.ToolCallID] = len(result.ToolCalls)
				result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
					ID: ev.ToolCallID, Tool: ev.ToolCallName, Args: ev.ToolCallArgs,
				})
			case reactloop.EventToolResult:
				if i, ok := byID[ev.ToolResultID]; ok {
					result.ToolCalls[i].Result = ev.ToolResultData
				}
			case reactloop.EventToolWarning:
				result.Warnings = append(result.Warnings, Warning{
					Tool: ev.WarningTool, Message: ev.WarningMessage, Verifier: ev.WarningVerifier,
				})
			case reactloop.EventError:
				result.Flags = append(result.Flags, ev.ErrorMessage)
			case reactloop.EventHitl:
				return result, &Pause{ResumeToken: ev.ResumeToken, Tool: ev.HitlTool, Message: ev.HitlMessage}, ErrHitlPause
			case reactloop.EventDone:
				return result, nil, nil
			}
		}
	}
}
