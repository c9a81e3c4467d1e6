package hitl

import (
	"context"
	"sync"
	"time"

	"github.com/forgehq/sidecar/pkg/models"
)

// MemoryStore is an in-process pause store; the least durable backend in
// the §4.7 priority chain and the one always available.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]models.HitlPauseState
}

// NewMemoryStore returns an empty in-memory pause store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]models.HitlPauseState)}
}

// Save stores state under its token, overwriting any prior entry.
func (m *MemoryStore) Save(ctx context.Context, state models.HitlPauseState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.ResumeToken] = state
	return nil
}

// Resume atomically fetches and deletes the entry for token.
func (m *MemoryStore) Resume(ctx context.Context, token string) (models.HitlPauseState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps, ok := m.states[token]
	if !ok {
		return models.HitlPauseState{}, ErrNotFound
	}
	delete(m.states, token)
	if !ps.ExpiresAt.IsZero() && time.Now().After(ps.ExpiresAt) {
		return models.HitlPauseState{}, ErrNotFound
	}
	return ps, nil
}

// Sweep removes expired entries; called periodically by a cron sweeper since
// nothing else prunes this backend.
func (m *MemoryStore) Sweep() {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for token, ps := range m.states {
		if !ps.ExpiresAt.IsZero() && now.After(ps.ExpiresAt) {
			delete(m.states, token)
		}
	}
}

// Close is a no-op; nothing to release.
func (m *MemoryStore) Close() error {
	return nil
}
