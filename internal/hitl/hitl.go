// Package hitl implements the human-in-the-loop pause/resume engine (§4.7):
// shouldPause policy evaluation plus a TTL-backed store for suspended loop
// state, keyed by a single-use opaque resume token.
package hitl

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forgehq/sidecar/pkg/models"
)

// ErrNotFound is returned by Resume when the token is unknown, already
// consumed, or expired.
var ErrNotFound = errors.New("hitl: resume token not found or expired")

// DefaultTTL is the pause lifetime applied when none is configured.
const DefaultTTL = 5 * time.Minute

// Store persists pause state under an opaque token. Resume must be atomic:
// a token may be consumed exactly once.
type Store interface {
	Save(ctx context.Context, state models.HitlPauseState) error
	// Resume atomically fetches and deletes the state for token. It returns
	// ErrNotFound when the token is absent (including already-consumed or
	// backend-expired).
	Resume(ctx context.Context, token string) (models.HitlPauseState, error)
	Close() error
}

// Engine evaluates the shouldPause policy and drives pause/resume against a
// backing Store.
type Engine struct {
	store Store
	ttl   time.Duration
}

// NewEngine wraps store with the given pause TTL. A non-positive ttl falls
// back to DefaultTTL.
func NewEngine(store Store, ttl time.Duration) *Engine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Engine{store: store, ttl: ttl}
}

// ShouldPause maps a user's HITL sensitivity level to a pause decision for
// the given tool spec (§4.7).
func ShouldPause(level models.HitlLevel, spec models.ToolSpec) bool {
	switch level {
	case models.HitlAutonomous:
		return false
	case models.HitlCautious:
		return spec.RequiresConfirmation
	case models.HitlStandard:
		return spec.RequiresConfirmation || isMutatingMethod(toolMethod(spec))
	case models.HitlParanoid:
		return true
	default:
		return false
	}
}

// toolMethod derives the HTTP-method-shaped signal §4.7's "standard" level
// checks against. Tools routed through MCP carry an explicit method; other
// tools are inferred from their category (write tools behave like POST).
func toolMethod(spec models.ToolSpec) string {
	if spec.MCPRouting != nil && spec.MCPRouting.Method != "" {
		return strings.ToUpper(spec.MCPRouting.Method)
	}
	if spec.Category == models.CategoryWrite {
		return "POST"
	}
	return "GET"
}

func isMutatingMethod(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	default:
		return false
	}
}

// Pause persists state under a fresh random token and returns it.
func (e *Engine) Pause(ctx context.Context, state []byte) (string, error) {
	token := uuid.NewString()
	now := time.Now()
	ps := models.HitlPauseState{
		ResumeToken: token,
		State:       state,
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.ttl),
	}
	if err := e.store.Save(ctx, ps); err != nil {
		return "", err
	}
	return token, nil
}

// Resume consumes token and returns the serialized loop state. Expired
// entries (the backend may lazily retain them past their TTL) are treated
// as not found.
func (e *Engine) Resume(ctx context.Context, token string) ([]byte, error) {
	ps, err := e.store.Resume(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ps.ExpiresAt.IsZero() && time.Now().After(ps.ExpiresAt) {
		return nil, ErrNotFound
	}
	return ps.State, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
