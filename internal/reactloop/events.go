package reactloop

import "github.com/forgehq/sidecar/internal/llm"

// EventType names one of the six tagged records the driver emits (§4.4).
type EventType string

const (
	EventText        EventType = "text"
	EventToolCall    EventType = "tool_call"
	EventToolResult  EventType = "tool_result"
	EventToolWarning EventType = "tool_warning"
	EventHitl        EventType = "hitl"
	EventError       EventType = "error"
	EventDone        EventType = "done"
)

// Event is one record of the driver's output stream. Only the field(s)
// matching Type are populated.
type Event struct {
	Type EventType

	Text string

	ToolCallID   string
	ToolCallName string
	ToolCallArgs map[string]interface{}

	ToolResultID     string
	ToolResultData   map[string]interface{}
	ToolResultError  string

	WarningTool     string
	WarningMessage  string
	WarningVerifier string

	ResumeToken  string
	HitlTool     string
	HitlMessage  string
	HitlVerifier string

	ErrorMessage string

	Usage llm.Usage
}
