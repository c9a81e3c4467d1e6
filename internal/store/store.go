// Package store implements the conversation store described in §4.3: an
// interface shared by in-memory, SQLite, Postgres, and Redis backends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/forgehq/sidecar/pkg/models"
)

// ErrSessionNotFound is returned by operations that require a session to
// already exist. getHistory of an unknown session instead returns an empty
// slice, per §4.3.
var ErrSessionNotFound = errors.New("session not found")

// Store is the conversation store interface implemented by every backend.
// All implementations share identical semantics (§4.3): createSession only
// guarantees uniqueness once paired with a persisted message; unknown
// session ids yield an empty history rather than an error.
type Store interface {
	CreateSession(ctx context.Context) (string, error)
	PersistMessage(ctx context.Context, sessionID, stage string, role models.Role, content string) error
	GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error)
	GetIncompleteSessions(ctx context.Context) ([]models.IncompleteSession, error)
	Close() error
}

// isComplete reports whether turns ends with a system turn equal to the
// completion sentinel — the last turn chronologically, not necessarily the
// last one appended (store backends keep turns in append order already).
func isComplete(turns []models.Turn) bool {
	if len(turns) == 0 {
		return false
	}
	last := turns[len(turns)-1]
	return last.Role == models.RoleSystem && last.Content == models.CompleteSentinel
}

// latestUpdate returns the timestamp of the final turn, used to populate
// IncompleteSession.LastUpdated.
func latestUpdate(turns []models.Turn) time.Time {
	if len(turns) == 0 {
		return time.Time{}
	}
	return turns[len(turns)-1].CreatedAt
}

func latestStage(turns []models.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].Stage
}
