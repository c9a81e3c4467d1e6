package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/pkg/models"
)

// MemoryCatalog is an in-process Catalog implementation for tests and local
// runs, mirroring internal/store.MemoryStore's role for conversations.
type MemoryCatalog struct {
	mu       sync.RWMutex
	agents   map[string]models.Agent
	prefs    map[string]models.UserPreferences
	prompts  map[string][]models.PromptVersion // agentID -> versions
	tools    map[string]models.ToolRegistryEntry
	verifs   map[string]models.Verifier
	bindings []models.VerifierBinding
}

// NewMemoryCatalog creates an empty in-memory catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		agents:  make(map[string]models.Agent),
		prefs:   make(map[string]models.UserPreferences),
		prompts: make(map[string][]models.PromptVersion),
		tools:   make(map[string]models.ToolRegistryEntry),
		verifs:  make(map[string]models.Verifier),
	}
}

func (m *MemoryCatalog) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryCatalog) GetDefaultAgent(ctx context.Context) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		if a.IsDefault {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryCatalog) ListAgents(ctx context.Context) ([]models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryCatalog) UpsertAgent(ctx context.Context, a models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.ID] = a
	return nil
}

func (m *MemoryCatalog) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryCatalog) SavePreferences(ctx context.Context, p models.UserPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[p.UserID] = p
	return nil
}

func (m *MemoryCatalog) ActivePrompt(ctx context.Context, agentID string) (resolver.ActivePromptVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, pv := range m.prompts[agentID] {
		if pv.IsActive {
			return activeContent{content: pv.Content, ok: true}, nil
		}
	}
	return noActiveContent, nil
}

func (m *MemoryCatalog) ListPromptVersions(ctx context.Context, agentID string) ([]models.PromptVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.PromptVersion(nil), m.prompts[agentID]...)
	return out, nil
}

func (m *MemoryCatalog) CreatePromptVersion(ctx context.Context, agentID string, pv models.PromptVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pv.CreatedAt = time.Now()
	m.prompts[agentID] = append(m.prompts[agentID], pv)
	return nil
}

func (m *MemoryCatalog) ActivatePromptVersion(ctx context.Context, agentID, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.prompts[agentID]
	found := false
	now := time.Now()
	for i := range versions {
		if versions[i].Version == version {
			versions[i].IsActive = true
			versions[i].ActivatedAt = &now
			found = true
		} else {
			versions[i].IsActive = false
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (m *MemoryCatalog) ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ToolRegistryEntry, 0, len(m.tools))
	for _, t := range m.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) UpsertTool(ctx context.Context, t models.ToolRegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools[t.Name] = t
	return nil
}

func (m *MemoryCatalog) ListVerifiers(ctx context.Context) ([]models.Verifier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Verifier, 0, len(m.verifs))
	for _, v := range m.verifs {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryCatalog) ListBindings(ctx context.Context) ([]models.VerifierBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.VerifierBinding(nil), m.bindings...), nil
}

func (m *MemoryCatalog) UpsertVerifier(ctx context.Context, v models.Verifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifs[v.Name] = v
	return nil
}

func (m *MemoryCatalog) BindVerifier(ctx context.Context, b models.VerifierBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bindings {
		if existing == b {
			return nil
		}
	}
	m.bindings = append(m.bindings, b)
	return nil
}

func (m *MemoryCatalog) Close() error { return nil }
