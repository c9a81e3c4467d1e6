package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/forgehq/sidecar/pkg/models"
)

// maxTurnsPerSession bounds per-session memory growth the way the teacher's
// in-memory message store bounds its own history (trim oldest on overflow).
const maxTurnsPerSession = 1000

// MemoryStore is an in-process Store implementation for tests and local runs.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]models.Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]models.Turn)}
}

// CreateSession reserves a new session id. The id becomes durable only once
// a turn is persisted against it.
func (m *MemoryStore) CreateSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PersistMessage appends a turn to the session's history.
func (m *MemoryStore) PersistMessage(ctx context.Context, sessionID, stage string, role models.Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	turn := models.Turn{
		SessionID: sessionID,
		Stage:     stage,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	turns := append(m.turns[sessionID], turn)
	if len(turns) > maxTurnsPerSession {
		turns = turns[len(turns)-maxTurnsPerSession:]
	}
	m.turns[sessionID] = turns
	return nil
}

// GetHistory returns turns in chronological order. Unknown sessions yield an
// empty slice, never an error.
func (m *MemoryStore) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := m.turns[sessionID]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// GetIncompleteSessions returns every session whose latest system turn is
// not the completion sentinel.
func (m *MemoryStore) GetIncompleteSessions(ctx context.Context) ([]models.IncompleteSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.IncompleteSession
	for sessionID, turns := range m.turns {
		if isComplete(turns) {
			continue
		}
		out = append(out, models.IncompleteSession{
			SessionID:   sessionID,
			Stage:       latestStage(turns),
			LastUpdated: latestUpdate(turns),
		})
	}
	return out, nil
}

// Close is a no-op for the in-memory backend.
func (m *MemoryStore) Close() error { return nil }
