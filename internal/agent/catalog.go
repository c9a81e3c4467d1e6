// Package agent implements the operator-facing catalog behind the ReAct
// loop's per-request resolution (§4.2, §4.5): named agent configurations,
// per-user preferences, system-prompt versions, and the tool/verifier
// registry rows consumed by internal/registry and internal/resolver.
package agent

import (
	"context"
	"errors"

	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/pkg/models"
)

// ErrNotFound is returned by lookups for an id that does not exist.
var ErrNotFound = errors.New("agent: not found")

// Catalog is the full persistence surface behind the resolver and registry:
// it implements registry.ToolStore and registry.VerifierStore directly so a
// single backend serves both the request-time registry build and the admin
// CRUD surface.
type Catalog interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetDefaultAgent(ctx context.Context) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	UpsertAgent(ctx context.Context, a models.Agent) error

	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	SavePreferences(ctx context.Context, p models.UserPreferences) error

	ActivePrompt(ctx context.Context, agentID string) (resolver.ActivePromptVersion, error)
	ListPromptVersions(ctx context.Context, agentID string) ([]models.PromptVersion, error)
	CreatePromptVersion(ctx context.Context, agentID string, pv models.PromptVersion) error
	ActivatePromptVersion(ctx context.Context, agentID, version string) error

	ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error)
	UpsertTool(ctx context.Context, t models.ToolRegistryEntry) error

	ListVerifiers(ctx context.Context) ([]models.Verifier, error)
	ListBindings(ctx context.Context) ([]models.VerifierBinding, error)
	UpsertVerifier(ctx context.Context, v models.Verifier) error
	BindVerifier(ctx context.Context, b models.VerifierBinding) error

	Close() error
}

// activeContent adapts a stored prompt's content to resolver.ActivePromptVersion.
type activeContent struct {
	content string
	ok      bool
}

func (a activeContent) ActiveContent() (string, bool) { return a.content, a.ok }

// noActiveContent is returned for an agent with no active prompt version.
var noActiveContent = activeContent{}
