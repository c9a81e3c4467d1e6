// Package resolver implements the preference/agent resolver described in
// §4.2: merging base configuration, agent overrides, and user preferences
// into the effective per-request tuple the ReAct loop consumes.
package resolver

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/forgehq/sidecar/internal/registry"
	"github.com/forgehq/sidecar/pkg/models"
)

// ErrAgentNotFound is returned when a request names an agent id that does
// not exist or is disabled.
var ErrAgentNotFound = errors.New("agent not found")

const defaultSystemPrompt = "You are a helpful assistant."

// BaseConfig is the lowest layer of the resolver's merge: operator-level
// defaults from the YAML configuration.
type BaseConfig struct {
	DefaultModel         string
	DefaultHitlLevel     models.HitlLevel
	AllowUserModelSelect bool
	AllowUserHitlConfig  bool
	SystemPrompt         string
	MaxTurns             int
	MaxTokens            int
}

// Effective is the resolved tuple consumed by the ReAct loop.
type Effective struct {
	Model        string
	HitlLevel    models.HitlLevel
	Provider     string
	APIKey       string
	SystemPrompt string
	MaxTurns     int
	MaxTokens    int
	ToolSet      []models.ToolRegistryEntry
}

// ActivePromptVersion supplies the system-prompt fallback's second link:
// agent prompt → active prompt version → configured system prompt →
// default.
type ActivePromptVersion interface {
	ActiveContent() (string, bool)
}

// Resolve merges base, the named agent (if any), and user preferences, and
// derives provider/API key/tool set.
func Resolve(base BaseConfig, agentID string, agent *models.Agent, defaultAgent *models.Agent, prefs *models.UserPreferences, prompts ActivePromptVersion, idx *registry.Index) (Effective, error) {
	if agentID == "" {
		agent = defaultAgent
	} else if agent == nil || !agent.Enabled {
		return Effective{}, ErrAgentNotFound
	}

	eff := Effective{
		Model:        base.DefaultModel,
		HitlLevel:    base.DefaultHitlLevel,
		SystemPrompt: base.SystemPrompt,
		MaxTurns:     base.MaxTurns,
		MaxTokens:    base.MaxTokens,
	}

	allowUserModelSelect := base.AllowUserModelSelect
	allowUserHitlConfig := base.AllowUserHitlConfig
	toolAllowlistRaw := "*"
	var agentSystemPrompt string

	if agent != nil {
		if agent.DefaultModel != nil && *agent.DefaultModel != "" {
			eff.Model = *agent.DefaultModel
		}
		if agent.DefaultHitlLevel != nil && *agent.DefaultHitlLevel != "" {
			eff.HitlLevel = *agent.DefaultHitlLevel
		}
		if agent.SystemPrompt != nil && *agent.SystemPrompt != "" {
			agentSystemPrompt = *agent.SystemPrompt
		}
		if agent.MaxTurns != nil {
			eff.MaxTurns = *agent.MaxTurns
		}
		if agent.MaxTokens != nil {
			eff.MaxTokens = *agent.MaxTokens
		}
		// Boolean permission flags overwrite only when true — the DB
		// default of false means "unset", never an explicit revocation.
		if agent.AllowUserModelSelect {
			allowUserModelSelect = true
		}
		if agent.AllowUserHitlConfig {
			allowUserHitlConfig = true
		}
		if agent.ToolAllowlistRaw != "" {
			toolAllowlistRaw = agent.ToolAllowlistRaw
		}
	}

	if prefs != nil {
		if allowUserModelSelect && prefs.Model != nil && *prefs.Model != "" {
			eff.Model = *prefs.Model
		}
		if allowUserHitlConfig && prefs.HitlLevel != nil && *prefs.HitlLevel != "" {
			eff.HitlLevel = *prefs.HitlLevel
		}
	}

	eff.SystemPrompt = resolveSystemPrompt(agentSystemPrompt, prompts, base.SystemPrompt)
	eff.Provider = DeriveProvider(eff.Model)
	eff.APIKey = APIKeyForProvider(eff.Provider)

	if idx != nil {
		eff.ToolSet = FilterTools(idx.Tools(), toolAllowlistRaw)
	}

	return eff, nil
}

// resolveSystemPrompt implements the fallback chain: agent prompt → active
// prompt version → configured system prompt → built-in default.
func resolveSystemPrompt(agentPrompt string, prompts ActivePromptVersion, configured string) string {
	if agentPrompt != "" {
		return agentPrompt
	}
	if prompts != nil {
		if content, ok := prompts.ActiveContent(); ok && content != "" {
			return content
		}
	}
	if configured != "" {
		return configured
	}
	return defaultSystemPrompt
}

// DeriveProvider maps a model name prefix to a provider per §4.2.
func DeriveProvider(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini-"):
		return "google"
	case strings.HasPrefix(model, "deepseek-"):
		return "deepseek"
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	default:
		return "anthropic"
	}
}

// APIKeyForProvider looks up the provider's API key from the environment.
func APIKeyForProvider(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "google":
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GEMINI_API_KEY")
	case "deepseek":
		return os.Getenv("DEEPSEEK_API_KEY")
	default:
		return ""
	}
}

// FilterTools applies an agent's tool_allowlist to the promoted tool set.
// A malformed allowlist (not "*" and not valid JSON array of strings) fails
// closed: an empty set, never the full set.
func FilterTools(all []models.ToolRegistryEntry, allowlistRaw string) []models.ToolRegistryEntry {
	trimmed := strings.TrimSpace(allowlistRaw)
	if trimmed == "*" {
		return all
	}
	if trimmed == "" {
		return nil
	}

	var names []string
	if err := json.Unmarshal([]byte(trimmed), &names); err != nil {
		return nil
	}

	allowed := make(map[string]struct{}, len(names))
	for _, n := range names {
		allowed[n] = struct{}{}
	}

	var out []models.ToolRegistryEntry
	for _, t := range all {
		if _, ok := allowed[t.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}
