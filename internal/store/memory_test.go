package store

import (
	"context"
	"testing"
	"time"

	"github.com/forgehq/sidecar/pkg/models"
)

func TestMemoryStoreGetHistoryOrdersByTimestamp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sessionID, err := s.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	if err := s.PersistMessage(ctx, sessionID, "intake", models.RoleUser, "hi"); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := s.PersistMessage(ctx, sessionID, "respond", models.RoleAssistant, "hello"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	turns, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	for i := 1; i < len(turns); i++ {
		if turns[i].CreatedAt.Before(turns[i-1].CreatedAt) {
			t.Fatalf("turns out of order at index %d", i)
		}
	}
	if turns[0].Content != "hi" || turns[1].Content != "hello" {
		t.Fatalf("unexpected turn contents: %+v", turns)
	}
}

func TestMemoryStoreUnknownSessionReturnsEmptyHistory(t *testing.T) {
	s := NewMemoryStore()
	turns, err := s.GetHistory(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
}

func TestGetIncompleteSessionsExcludesCompletedSessions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	active, _ := s.CreateSession(ctx)
	s.PersistMessage(ctx, active, "intake", models.RoleUser, "hi")

	done, _ := s.CreateSession(ctx)
	s.PersistMessage(ctx, done, "intake", models.RoleUser, "hi")
	s.PersistMessage(ctx, done, "finalize", models.RoleSystem, models.CompleteSentinel)

	incomplete, err := s.GetIncompleteSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := map[string]bool{}
	for _, s := range incomplete {
		found[s.SessionID] = true
	}
	if !found[active] {
		t.Fatalf("expected active session to be incomplete")
	}
	if found[done] {
		t.Fatalf("expected completed session to be excluded")
	}
}

func TestGetIncompleteSessionsIgnoresNonFinalCompleteTurn(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sessionID, _ := s.CreateSession(ctx)
	s.PersistMessage(ctx, sessionID, "intake", models.RoleUser, "hi")
	s.PersistMessage(ctx, sessionID, "finalize", models.RoleSystem, models.CompleteSentinel)
	// A later turn reopens the session; it should count as incomplete again.
	s.PersistMessage(ctx, sessionID, "followup", models.RoleUser, "one more thing")

	incomplete, err := s.GetIncompleteSessions(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, s := range incomplete {
		if s.SessionID == sessionID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected reopened session to be reported incomplete")
	}
}

func TestMemoryStoreTrimsOldTurnsBeyondLimit(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sessionID, _ := s.CreateSession(ctx)

	for i := 0; i < maxTurnsPerSession+10; i++ {
		if err := s.PersistMessage(ctx, sessionID, "loop", models.RoleUser, "msg"); err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
	}

	turns, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != maxTurnsPerSession {
		t.Fatalf("expected trimmed history of %d, got %d", maxTurnsPerSession, len(turns))
	}
}

func TestPersistMessageThenGetHistoryRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	sessionID, _ := s.CreateSession(ctx)

	if err := s.PersistMessage(ctx, sessionID, "stage-1", models.RoleTool, "result payload"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	turns, err := s.GetHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(turns))
	}
	got := turns[0]
	if got.SessionID != sessionID || got.Stage != "stage-1" || got.Role != models.RoleTool || got.Content != "result payload" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Fatalf("expected recent timestamp, got %v", got.CreatedAt)
	}
}
