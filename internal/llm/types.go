// Package llm provides a provider-agnostic LLM client abstraction plus
// concrete Anthropic, OpenAI, and Google implementations. The ReAct loop
// driver (internal/reactloop) speaks only this package's types; provider
// wire formats never leak past Complete().
package llm

import (
	"context"
	"encoding/json"
)

// Provider is the interface every LLM backend implements (§4.2 provider
// derivation picks a concrete Provider by model-name prefix).
type Provider interface {
	// Complete sends a prompt and returns a streaming response.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name ("anthropic", "openai", "google", "deepseek").
	Name() string

	// Models returns the models this provider exposes.
	Models() []Model

	// SupportsTools reports whether the provider supports tool/function calling.
	SupportsTools() bool
}

// CompletionRequest is one LLM turn: resolved system prompt, historical
// messages, the filtered tool set, and generation parameters (§4.4 step 2).
type CompletionRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []CompletionMessage `json:"messages"`
	Tools     []Tool              `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

// CompletionMessage is one entry in the conversation passed to the provider.
// Role is one of "user", "assistant", "system", "tool".
type CompletionMessage struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// ToolCall is a single tool invocation requested by the model mid-stream.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input,omitempty"`
}

// ToolResult carries a tool's outcome back into the conversation so the
// model can observe it on the next turn.
type ToolResult struct {
	ToolCallID  string       `json:"tool_call_id"`
	Content     string       `json:"content"`
	IsError     bool         `json:"is_error,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is an image or file attached to a message for vision-capable
// models.
type Attachment struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"data,omitempty"`
}

// CompletionChunk is one element of a provider's streaming response.
type CompletionChunk struct {
	Text         string    `json:"text,omitempty"`
	ToolCall     *ToolCall `json:"tool_call,omitempty"`
	Done         bool      `json:"done,omitempty"`
	Error        error     `json:"-"`
	InputTokens  int       `json:"input_tokens,omitempty"`
	OutputTokens int       `json:"output_tokens,omitempty"`
}

// Usage is the accumulated token usage for a completed ReAct run (§4.4 step 6).
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Model describes a model exposed by a provider.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// Tool is the provider-facing description of an available tool, adapted
// per-request from the filtered ToolSpec set (§4.2 tool filtering).
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
}

// SimpleTool is the concrete Tool implementation the ReAct loop builds from
// a registry ToolSpec before handing the set to a provider.
type SimpleTool struct {
	ToolName        string
	ToolDescription string
	ToolSchema      json.RawMessage
}

func (t SimpleTool) Name() string            { return t.ToolName }
func (t SimpleTool) Description() string     { return t.ToolDescription }
func (t SimpleTool) Schema() json.RawMessage { return t.ToolSchema }

// ComputerUseConfig describes display configuration for computer-use tools.
type ComputerUseConfig struct {
	DisplayWidthPx  int
	DisplayHeightPx int
	DisplayNumber   int
}

// ComputerUseConfigProvider is an optional interface a Tool may implement to
// expose computer-use display configuration to the Anthropic provider. No
// tool in this system implements it; kept so the Anthropic provider's
// computer-use branch compiles unchanged.
type ComputerUseConfigProvider interface {
	ComputerUseConfig() *ComputerUseConfig
}
