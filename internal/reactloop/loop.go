// Package reactloop drives the per-request ReAct (reason-act-observe) turn
// sequence (§4.4): compose an LLM request, stream its reply, dispatch any
// tool calls through the verifier pipeline and HITL policy, append results
// to the working history, and repeat until the model stops calling tools or
// a turn budget is hit.
package reactloop

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgehq/sidecar/internal/hitl"
	"github.com/forgehq/sidecar/internal/llm"
	"github.com/forgehq/sidecar/internal/registry"
	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/internal/store"
	"github.com/forgehq/sidecar/internal/verifier"
	"github.com/forgehq/sidecar/pkg/models"
)

// defaultMaxTurns bounds the outer loop when Effective.MaxTurns is unset.
const defaultMaxTurns = 10

// Loop wires the LLM provider, verifier pipeline, HITL engine, conversation
// store, and tool dispatcher into one request-scoped driver.
type Loop struct {
	Providers  map[string]llm.Provider
	Verifiers  *verifier.Pipeline
	Hitl       *hitl.Engine
	Store      store.Store
	Dispatcher ToolDispatcher
}

// Request is everything one `/agent-api/chat` call resolves before the
// driver starts (§4.2's Effective config plus the routing context).
type Request struct {
	SessionID   string
	AgentID     string
	UserMessage string
	Effective   resolver.Effective
	HitlLevel   models.HitlLevel
	Index       *registry.Index
	// Window caps how many trailing persisted turns are replayed into the
	// LLM request (§4.4 step 1, conversation.window in config). <=0 means
	// replay everything the store returns.
	Window int
}

// PauseState is the serialized loop state captured on a HITL pause (§4.7).
// It is deliberately provider/registry-agnostic: resume re-resolves the
// Effective config and registry Index fresh, exactly like a new request, and
// only restores the in-flight conversation.
type PauseState struct {
	SessionID   string                 `json:"sessionId"`
	AgentID     string                 `json:"agentId"`
	Messages    []llm.CompletionMessage `json:"messages"`
	Usage       llm.Usage              `json:"usage"`
	Turn        int                    `json:"turn"`
	PendingCall *llm.ToolCall          `json:"pendingCall,omitempty"`
}

// Run starts a fresh ReAct loop and returns its event stream. The channel is
// closed after `done` (or after the context is cancelled, with no further
// events).
func (l *Loop) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		history, err := l.Store.GetHistory(ctx, req.SessionID)
		if err != nil {
			l.emitError(ctx, events, fmt.Sprintf("load history: %v", err))
			return
		}
		messages := windowedMessages(history, req.Window)

		if err := l.Store.PersistMessage(ctx, req.SessionID, "user-message", models.RoleUser, req.UserMessage); err != nil {
			l.emitError(ctx, events, fmt.Sprintf("persist user message: %v", err))
			return
		}
		messages = append(messages, llm.CompletionMessage{Role: "user", Content: req.UserMessage})

		state := &runState{
			sessionID: req.SessionID,
			agentID:   req.AgentID,
			hitlLevel: req.HitlLevel,
			messages:  messages,
		}
		l.drive(ctx, req.Effective, req.Index, state, events)
	}()
	return events
}

// Resume consumes a single-use resume token, restores the in-flight
// conversation, dispatches the tool call that triggered the pause, and
// continues the loop. req carries a freshly resolved Effective/Index for
// the same agent, exactly as the original request would.
func (l *Loop) Resume(ctx context.Context, token string, effective resolver.Effective, idx *registry.Index, hitlLevel models.HitlLevel) (<-chan Event, error) {
	raw, err := l.Hitl.Resume(ctx, token)
	if err != nil {
		return nil, err
	}
	var ps PauseState
	if err := json.Unmarshal(raw, &ps); err != nil {
		return nil, fmt.Errorf("decode pause state: %w", err)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		state := &runState{
			sessionID: ps.SessionID,
			agentID:   ps.AgentID,
			hitlLevel: hitlLevel,
			messages:  ps.Messages,
			usage:     ps.Usage,
			turn:      ps.Turn,
		}
		if ps.PendingCall != nil {
			// Resuming means the pause was already resolved (approved, or the
			// blocking verifier's finding acknowledged) out of band; dispatch
			// directly instead of re-evaluating shouldPause, which would
			// otherwise pause again forever.
			if !l.dispatchAndVerify(ctx, idx, state, *ps.PendingCall, events) {
				return
			}
		}
		l.drive(ctx, effective, idx, state, events)
	}()
	return events, nil
}

type runState struct {
	sessionID string
	agentID   string
	hitlLevel models.HitlLevel
	messages  []llm.CompletionMessage
	usage     llm.Usage
	turn      int
}

// drive runs the outer loop: one LLM turn, then zero or more tool
// dispatches, until the model stops calling tools or maxTurns is reached.
func (l *Loop) drive(ctx context.Context, effective resolver.Effective, idx *registry.Index, state *runState, events chan<- Event) {
	maxTurns := effective.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	for state.turn < maxTurns {
		if ctx.Err() != nil {
			return
		}
		state.turn++

		provider, ok := l.Providers[effective.Provider]
		if !ok {
			l.emitError(ctx, events, fmt.Sprintf("no provider configured for %q", effective.Provider))
			return
		}

		chunks, err := provider.Complete(ctx, &llm.CompletionRequest{
			Model:     effective.Model,
			System:    effective.SystemPrompt,
			Messages:  state.messages,
			Tools:     buildTools(effective.ToolSet),
			MaxTokens: effective.MaxTokens,
		})
		if err != nil {
			l.emitError(ctx, events, err.Error())
			l.finish(ctx, events, state.usage)
			return
		}

		var text string
		var toolCalls []llm.ToolCall
		for chunk := range chunks {
			if ctx.Err() != nil {
				return
			}
			if chunk.Error != nil {
				l.emitError(ctx, events, chunk.Error.Error())
				l.finish(ctx, events, state.usage)
				return
			}
			if chunk.Text != "" {
				text += chunk.Text
				select {
				case events <- Event{Type: EventText, Text: chunk.Text}:
				case <-ctx.Done():
					return
				}
			}
			if chunk.ToolCall != nil {
				toolCalls = append(toolCalls, *chunk.ToolCall)
			}
			state.usage.InputTokens += chunk.InputTokens
			state.usage.OutputTokens += chunk.OutputTokens
		}

		assistantMsg := llm.CompletionMessage{Role: "assistant", Content: text, ToolCalls: toolCalls}
		state.messages = append(state.messages, assistantMsg)
		if err := l.persistAssistant(ctx, state, text, toolCalls); err != nil {
			l.emitError(ctx, events, fmt.Sprintf("persist assistant turn: %v", err))
			l.finish(ctx, events, state.usage)
			return
		}

		if len(toolCalls) == 0 {
			l.finish(ctx, events, state.usage)
			return
		}

		for _, tc := range toolCalls {
			select {
			case events <- Event{Type: EventToolCall, ToolCallID: tc.ID, ToolCallName: tc.Name, ToolCallArgs: decodeArgs(tc.Input)}:
			case <-ctx.Done():
				return
			}
			if !l.handleToolCall(ctx, idx, state, tc, events) {
				return // paused or fatal; a hitl/error event was already emitted
			}
		}
	}

	l.finish(ctx, events, state.usage)
}

// handleToolCall consults HITL policy, dispatches the tool, runs the
// verifier pipeline, and appends the outcome to the working history. It
// returns false when the loop must stop (HITL pause).
func (l *Loop) handleToolCall(ctx context.Context, idx *registry.Index, state *runState, tc llm.ToolCall, events chan<- Event) bool {
	entry, ok := idx.Tool(tc.Name)
	if !ok {
		result := map[string]interface{}{"error": fmt.Sprintf("unknown tool %q", tc.Name)}
		l.appendToolResult(ctx, state, tc.ID, result, events)
		return true
	}

	if hitl.ShouldPause(state.hitlLevel, entry.Spec) {
		l.pauseForTool(ctx, state, &tc, "", "", events)
		return false
	}

	return l.dispatchAndVerify(ctx, idx, state, tc, events)
}

// dispatchAndVerify calls the tool and runs its verifier pipeline, without
// consulting HITL policy. Used both for the normal post-shouldPause path and
// for resuming a previously-approved pending call.
func (l *Loop) dispatchAndVerify(ctx context.Context, idx *registry.Index, state *runState, tc llm.ToolCall, events chan<- Event) bool {
	entry, ok := idx.Tool(tc.Name)
	if !ok {
		result := map[string]interface{}{"error": fmt.Sprintf("unknown tool %q", tc.Name)}
		l.appendToolResult(ctx, state, tc.ID, result, events)
		return true
	}

	args := decodeArgs(tc.Input)
	result, err := l.Dispatcher.Dispatch(ctx, entry.Spec, args)
	if err != nil {
		errResult := map[string]interface{}{"error": err.Error()}
		l.appendToolResult(ctx, state, tc.ID, errResult, events)
		return true
	}

	verifiers := idx.VerifiersFor(tc.Name)
	outcome := l.Verifiers.Run(ctx, tc.Name, entry.Spec.Category, verifiers, result)

	for _, w := range outcome.Warnings {
		select {
		case events <- Event{Type: EventToolWarning, WarningTool: tc.Name, WarningMessage: w.Message, WarningVerifier: w.Verifier}:
		case <-ctx.Done():
			return false
		}
	}

	if outcome.Final == models.OutcomeBlock {
		verifierName := ""
		message := "blocked by verifier"
		if outcome.Blocked != nil {
			verifierName = outcome.Blocked.Verifier
			if outcome.Blocked.Message != "" {
				message = outcome.Blocked.Message
			}
		}
		l.pauseForTool(ctx, state, &tc, verifierName, message, events)
		return false
	}

	l.appendToolResult(ctx, state, tc.ID, result, events)
	return true
}

func (l *Loop) appendToolResult(ctx context.Context, state *runState, toolCallID string, result map[string]interface{}, events chan<- Event) {
	raw, _ := json.Marshal(result)
	state.messages = append(state.messages, llm.CompletionMessage{
		Role: "tool",
		ToolResults: []llm.ToolResult{{
			ToolCallID: toolCallID,
			Content:    string(raw),
			IsError:    result["error"] != nil,
		}},
	})
	l.Store.PersistMessage(ctx, state.sessionID, "tool-result", models.RoleTool, string(raw))
	select {
	case events <- Event{Type: EventToolResult, ToolResultID: toolCallID, ToolResultData: result}:
	case <-ctx.Done():
	}
}

// pauseForTool persists the in-flight conversation (including the tool call
// awaiting confirmation) and emits the hitl event carrying its resume token.
func (l *Loop) pauseForTool(ctx context.Context, state *runState, tc *llm.ToolCall, verifierName, message string, events chan<- Event) {
	ps := PauseState{
		SessionID:   state.sessionID,
		AgentID:     state.agentID,
		Messages:    state.messages,
		Usage:       state.usage,
		Turn:        state.turn,
		PendingCall: tc,
	}
	raw, err := json.Marshal(ps)
	if err != nil {
		l.emitError(ctx, events, fmt.Sprintf("serialize pause state: %v", err))
		return
	}
	token, err := l.Hitl.Pause(ctx, raw)
	if err != nil {
		l.emitError(ctx, events, fmt.Sprintf("pause: %v", err))
		return
	}
	if message == "" {
		message = "awaiting confirmation"
	}
	select {
	case events <- Event{Type: EventHitl, ResumeToken: token, HitlTool: tc.Name, HitlMessage: message, HitlVerifier: verifierName}:
	case <-ctx.Done():
	}
}

func (l *Loop) persistAssistant(ctx context.Context, state *runState, text string, toolCalls []llm.ToolCall) error {
	if text == "" && len(toolCalls) == 0 {
		return nil
	}
	content := text
	if len(toolCalls) > 0 {
		raw, _ := json.Marshal(toolCalls)
		content = fmt.Sprintf("%s\n%s", text, raw)
	}
	return l.Store.PersistMessage(ctx, state.sessionID, "assistant-turn", models.RoleAssistant, content)
}

func (l *Loop) emitError(ctx context.Context, events chan<- Event, message string) {
	select {
	case events <- Event{Type: EventError, ErrorMessage: message}:
	case <-ctx.Done():
	}
}

func (l *Loop) finish(ctx context.Context, events chan<- Event, usage llm.Usage) {
	select {
	case events <- Event{Type: EventDone, Usage: usage}:
	case <-ctx.Done():
	}
}

// windowedMessages converts the trailing window of persisted turns into
// provider-facing messages. window<=0 means "take everything the store
// already windowed for us" (store backends cap history independently).
func windowedMessages(history []models.Turn, window int) []llm.CompletionMessage {
	start := 0
	if window > 0 && len(history) > window {
		start = len(history) - window
	}
	out := make([]llm.CompletionMessage, 0, len(history)-start)
	for _, t := range history[start:] {
		out = append(out, llm.CompletionMessage{Role: string(t.Role), Content: t.Content})
	}
	return out
}

func buildTools(entries []models.ToolRegistryEntry) []llm.Tool {
	tools := make([]llm.Tool, 0, len(entries))
	for _, e := range entries {
		schema, _ := json.Marshal(e.Spec.InputSchema)
		if len(schema) == 0 {
			schema = []byte(`{"type":"object","properties":{}}`)
		}
		tools = append(tools, llm.SimpleTool{
			ToolName:        e.Name,
			ToolDescription: e.Spec.Description,
			ToolSchema:      schema,
		})
	}
	return tools
}

func decodeArgs(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]interface{}{}
	}
	return args
}
