// Package models defines the data types persisted and exchanged by the
// sidecar: sessions and their turns, agent configuration, per-user
// preferences, the tool/verifier registry, HITL pause state, and prompt
// versions.
package models

import "time"

// Role identifies the author of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// CompleteSentinel is the system-turn content that marks a session as done.
const CompleteSentinel = "[COMPLETE]"

// Session is the append-only transcript container identified by an opaque id.
type Session struct {
	ID           string    `json:"id"`
	FirstSeenAt  time.Time `json:"first_seen_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Turn is one ordered record belonging to a Session.
type Turn struct {
	SessionID string    `json:"session_id"`
	Stage     string    `json:"stage"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	AgentID   string    `json:"agent_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IncompleteSession is a row returned by getIncompleteSessions.
type IncompleteSession struct {
	SessionID   string    `json:"session_id"`
	Stage       string    `json:"stage"`
	LastUpdated time.Time `json:"last_updated"`
}

// HitlLevel is a user's human-in-the-loop sensitivity preference.
type HitlLevel string

const (
	HitlAutonomous HitlLevel = "autonomous"
	HitlCautious   HitlLevel = "cautious"
	HitlStandard   HitlLevel = "standard"
	HitlParanoid   HitlLevel = "paranoid"
)

// ValidHitlLevel reports whether level is one of the four recognized levels.
func ValidHitlLevel(level HitlLevel) bool {
	switch level {
	case HitlAutonomous, HitlCautious, HitlStandard, HitlParanoid:
		return true
	default:
		return false
	}
}

// Agent is a named configuration bundle scoping tools, model, HITL level,
// and system prompt for a set of requests.
type Agent struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"display_name"`
	SystemPrompt         *string   `json:"system_prompt,omitempty"`
	DefaultModel         *string   `json:"default_model,omitempty"`
	DefaultHitlLevel     *HitlLevel `json:"default_hitl_level,omitempty"`
	AllowUserModelSelect bool      `json:"allow_user_model_select"`
	AllowUserHitlConfig  bool      `json:"allow_user_hitl_config"`
	ToolAllowlistRaw     string    `json:"tool_allowlist"`
	MaxTurns             *int      `json:"max_turns,omitempty"`
	MaxTokens            *int      `json:"max_tokens,omitempty"`
	Enabled              bool      `json:"enabled"`
	IsDefault            bool      `json:"is_default"`
	SeededFromConfig     bool      `json:"seeded_from_config"`
}

// UserPreferences holds a single user's chosen overrides.
type UserPreferences struct {
	UserID    string     `json:"user_id"`
	Model     *string    `json:"model,omitempty"`
	HitlLevel *HitlLevel `json:"hitl_level,omitempty"`
}

// ToolLifecycleState is a registry entry's position in its promotion lifecycle.
type ToolLifecycleState string

const (
	ToolCandidate ToolLifecycleState = "candidate"
	ToolPromoted  ToolLifecycleState = "promoted"
	ToolFlagged   ToolLifecycleState = "flagged"
	ToolRetired   ToolLifecycleState = "retired"
	ToolSwapped   ToolLifecycleState = "swapped"
)

// ToolCategory drives the role a tool plays in verifier degradation (§4.5).
type ToolCategory string

const (
	CategoryRead     ToolCategory = "read"
	CategoryAnalysis ToolCategory = "analysis"
	CategoryWrite    ToolCategory = "write"
)

// ToolRole returns the semantic role ("any" or "write") used by the verifier
// pipeline to pick a degraded outcome on verifier failure.
func (c ToolCategory) ToolRole() string {
	if c == CategoryWrite {
		return "write"
	}
	return "any"
}

// MCPRouting optionally routes a tool call to an external MCP-style endpoint.
type MCPRouting struct {
	Endpoint string `json:"endpoint,omitempty"`
	Method   string `json:"method,omitempty"`
}

// ToolSpec is the specification blob stored for a registry entry.
type ToolSpec struct {
	Name                  string                 `json:"name"`
	Description           string                 `json:"description"`
	InputSchema           map[string]interface{} `json:"input_schema,omitempty"`
	Category              ToolCategory           `json:"category,omitempty"`
	RequiresConfirmation  bool                   `json:"requiresConfirmation,omitempty"`
	TimeoutSeconds        int                    `json:"timeoutSeconds,omitempty"`
	MCPRouting            *MCPRouting            `json:"mcpRouting,omitempty"`
}

// ToolRegistryEntry is a tool row tracked by the registry.
type ToolRegistryEntry struct {
	Name             string             `json:"name"`
	LifecycleState   ToolLifecycleState `json:"lifecycle_state"`
	Spec             ToolSpec           `json:"spec"`
	BaselinePassRate float64            `json:"baseline_pass_rate"`
	PromotedAt       *time.Time         `json:"promoted_at,omitempty"`
}

// VerifierType selects how a verifier's spec blob is interpreted.
type VerifierType string

const (
	VerifierSchema VerifierType = "schema"
	VerifierPattern VerifierType = "pattern"
	VerifierCustom  VerifierType = "custom"
)

// ACIRUCategory is one of the five verifier ordering categories.
type ACIRUCategory string

const (
	ACIRUAttribution ACIRUCategory = "A"
	ACIRUCompliance  ACIRUCategory = "C"
	ACIRUInterface   ACIRUCategory = "I"
	ACIRURisk        ACIRUCategory = "R"
	ACIRUUncertainty ACIRUCategory = "U"
)

// VerifierOutcome is the result of running a verifier against a tool result.
type VerifierOutcome string

const (
	OutcomePass  VerifierOutcome = "pass"
	OutcomeWarn  VerifierOutcome = "warn"
	OutcomeBlock VerifierOutcome = "block"
)

// SchemaVerifierSpec is the spec blob for a "schema" verifier.
type SchemaVerifierSpec struct {
	Required   []string          `json:"required,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// PatternVerifierSpec is the spec blob for a "pattern" verifier.
type PatternVerifierSpec struct {
	Match   string          `json:"match,omitempty"`
	Reject  string          `json:"reject,omitempty"`
	Outcome VerifierOutcome `json:"outcome,omitempty"`
}

// CustomVerifierSpec is the spec blob for a "custom" verifier, routed to the
// out-of-process worker pool.
type CustomVerifierSpec struct {
	FilePath   string `json:"filePath"`
	ExportName string `json:"exportName"`
}

// Verifier is a named policy check bound to tools via VerifierBinding rows.
type Verifier struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"display_name"`
	Type        VerifierType  `json:"type"`
	Category    ACIRUCategory `json:"aciru_category"`
	Order       string        `json:"aciru_order"`
	Description string        `json:"description,omitempty"`

	Schema *SchemaVerifierSpec `json:"schema,omitempty"`
	Pattern *PatternVerifierSpec `json:"pattern,omitempty"`
	Custom  *CustomVerifierSpec  `json:"custom,omitempty"`
}

// VerifierBinding is a many-to-many row between verifiers and tools.
// ToolName "*" binds the verifier to every tool.
type VerifierBinding struct {
	VerifierName string `json:"verifier_name"`
	ToolName     string `json:"tool_name"`
}

// HitlPauseState is the serialized loop state captured when the loop suspends.
type HitlPauseState struct {
	ResumeToken string    `json:"resume_token"`
	State       []byte    `json:"state"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// PromptVersion is a stored system-prompt revision; at most one is active.
type PromptVersion struct {
	ID           int64      `json:"id"`
	Version      string     `json:"version"`
	Content      string     `json:"content"`
	Notes        string     `json:"notes,omitempty"`
	IsActive     bool       `json:"is_active"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ToolCall is one tool invocation requested by the LLM within a turn.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ID     string                 `json:"id"`
	Result map[string]interface{} `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}
