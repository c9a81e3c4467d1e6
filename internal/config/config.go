// Package config loads and validates the sidecar's YAML configuration
// (§6) and holds the runtime admin overlay described in §9: an
// atomic.Pointer swap for reads plus a mutex-guarded merge for admin writes.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Config is the sidecar's root configuration (§6 "Configuration (YAML/JSON)").
type Config struct {
	Auth                 AuthConfig         `yaml:"auth"`
	DefaultModel         string             `yaml:"defaultModel"`
	DefaultHitlLevel     string             `yaml:"defaultHitlLevel"`
	AllowUserModelSelect bool               `yaml:"allowUserModelSelect"`
	AllowUserHitlConfig  bool               `yaml:"allowUserHitlConfig"`
	AdminKey             string             `yaml:"adminKey"`
	Database             DatabaseConfig     `yaml:"database"`
	Conversation         ConversationConfig `yaml:"conversation"`
	Sidecar              SidecarConfig      `yaml:"sidecar"`
	Agents               []AgentConfig      `yaml:"agents"`
	RateLimit            RateLimitConfig    `yaml:"rateLimit"`
	Verification         VerificationConfig `yaml:"verification"`
}

// AuthConfig configures the end-user authentication mode (§4.1).
type AuthConfig struct {
	Mode       string `yaml:"mode"` // "trust" or "verify"
	SigningKey string `yaml:"signingKey"`
	ClaimsPath string `yaml:"claimsPath"`
}

// DatabaseConfig names the relational backend behind the tool/verifier/agent
// registries and prompt versions.
type DatabaseConfig struct {
	Type string `yaml:"type"` // "sqlite" or "postgres"
	URL  string `yaml:"url"`
}

// RedisConfig configures a Redis-backed conversation store.
type RedisConfig struct {
	URL        string `yaml:"url"`
	TTLSeconds int    `yaml:"ttlSeconds"`
}

// ConversationConfig configures the conversation store backend and history
// window (§4.3, §4.4 step 1).
type ConversationConfig struct {
	Store  string      `yaml:"store"` // "sqlite", "redis", or "postgres"
	Window int         `yaml:"window"`
	Redis  RedisConfig `yaml:"redis"`
}

// SidecarConfig toggles the HTTP server and its listen port.
type SidecarConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AgentConfig is one entry of the `agents` list (§4.2 base config + agent
// override layer).
type AgentConfig struct {
	ID                   string   `yaml:"id"`
	DisplayName          string   `yaml:"displayName"`
	SystemPrompt         string   `yaml:"systemPrompt"`
	DefaultModel         string   `yaml:"defaultModel"`
	DefaultHitlLevel     string   `yaml:"defaultHitlLevel"`
	AllowUserModelSelect *bool    `yaml:"allowUserModelSelect"`
	AllowUserHitlConfig  *bool    `yaml:"allowUserHitlConfig"`
	ToolAllowlist        any      `yaml:"toolAllowlist"` // "*" or []string
	MaxTurns             *int     `yaml:"maxTurns"`
	MaxTokens            *int     `yaml:"maxTokens"`
	IsDefault            bool     `yaml:"isDefault"`
}

// RateLimitConfig mirrors ratelimit.Config's YAML shape (§4.8).
type RateLimitConfig struct {
	Enabled     bool `yaml:"enabled"`
	WindowMs    int  `yaml:"windowMs"`
	MaxRequests int  `yaml:"maxRequests"`
}

// VerificationConfig configures the custom-verifier sandbox worker pool
// (§4.6).
type VerificationConfig struct {
	Sandbox        bool `yaml:"sandbox"`
	WorkerPoolSize *int `yaml:"workerPoolSize"`
	CustomTimeout  int  `yaml:"customTimeout"`
	MaxQueueDepth  int  `yaml:"maxQueueDepth"`
}

var agentIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Load reads, expands, decodes, defaults, and validates the config file at
// path. Environment variables referenced as `${VAR}` are expanded before
// parsing so secrets need not be checked in.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("failed to parse config: expected single document")
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = "trust"
	}
	if cfg.Auth.ClaimsPath == "" {
		cfg.Auth.ClaimsPath = "sub"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "claude-3-5-sonnet-20241022"
	}
	if cfg.DefaultHitlLevel == "" {
		cfg.DefaultHitlLevel = "standard"
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	applyConversationDefaults(&cfg.Conversation)
	applySidecarDefaults(&cfg.Sidecar)
	applyRateLimitDefaults(&cfg.RateLimit)
	applyVerificationDefaults(&cfg.Verification)
	for i := range cfg.Agents {
		applyAgentDefaults(&cfg.Agents[i])
	}
}

func applyConversationDefaults(cfg *ConversationConfig) {
	if cfg.Store == "" {
		cfg.Store = "sqlite"
	}
	if cfg.Window <= 0 {
		cfg.Window = 20
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 24 * 60 * 60
	}
}

func applySidecarDefaults(cfg *SidecarConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8088
	}
}

func applyRateLimitDefaults(cfg *RateLimitConfig) {
	if cfg.WindowMs <= 0 {
		cfg.WindowMs = 60_000
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
}

func applyVerificationDefaults(cfg *VerificationConfig) {
	if cfg.CustomTimeout <= 0 {
		cfg.CustomTimeout = 5000
	}
	if cfg.MaxQueueDepth <= 0 {
		cfg.MaxQueueDepth = 16
	}
}

func applyAgentDefaults(cfg *AgentConfig) {
	if cfg.ToolAllowlist == nil {
		cfg.ToolAllowlist = "*"
	}
}

// ConfigValidationError aggregates every schema violation found in one pass
// so an operator fixes the whole file in one edit-run cycle instead of
// one-error-at-a-time.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if cfg.Auth.Mode != "trust" && cfg.Auth.Mode != "verify" {
		issues = append(issues, `auth.mode must be "trust" or "verify"`)
	}
	if cfg.Auth.Mode == "verify" && strings.TrimSpace(cfg.Auth.SigningKey) == "" {
		issues = append(issues, "auth.signingKey is required when auth.mode is \"verify\"")
	}
	if cfg.Sidecar.Enabled && cfg.Auth.Mode == "verify" && strings.TrimSpace(cfg.Auth.SigningKey) == "" {
		issues = append(issues, "auth.signingKey is mandatory when sidecar.enabled and auth.mode is \"verify\"")
	}
	if cfg.Sidecar.Port < 1 || cfg.Sidecar.Port > 65535 {
		issues = append(issues, "sidecar.port must be between 1 and 65535")
	}
	if cfg.Database.Type != "" && cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		issues = append(issues, `database.type must be "sqlite" or "postgres"`)
	}
	if cfg.Conversation.Store != "sqlite" && cfg.Conversation.Store != "redis" && cfg.Conversation.Store != "postgres" {
		issues = append(issues, `conversation.store must be "sqlite", "redis", or "postgres"`)
	}
	if cfg.Conversation.Window < 1 {
		issues = append(issues, "conversation.window must be >= 1")
	}
	if cfg.RateLimit.WindowMs < 1 {
		issues = append(issues, "rateLimit.windowMs must be >= 1")
	}
	if cfg.RateLimit.MaxRequests < 1 {
		issues = append(issues, "rateLimit.maxRequests must be >= 1")
	}
	if cfg.Verification.WorkerPoolSize != nil && *cfg.Verification.WorkerPoolSize < 1 {
		issues = append(issues, "verification.workerPoolSize must be >= 1 when set")
	}
	if cfg.Verification.CustomTimeout < 1 {
		issues = append(issues, "verification.customTimeout must be >= 1")
	}
	if cfg.Verification.MaxQueueDepth < 1 {
		issues = append(issues, "verification.maxQueueDepth must be >= 1")
	}

	defaultCount := 0
	seen := make(map[string]bool)
	for i, agent := range cfg.Agents {
		if !agentIDPattern.MatchString(agent.ID) {
			issues = append(issues, fmt.Sprintf("agents[%d].id %q must match /^[a-z0-9_-]+$/", i, agent.ID))
		}
		if seen[agent.ID] {
			issues = append(issues, fmt.Sprintf("agents[%d].id %q is duplicated", i, agent.ID))
		}
		seen[agent.ID] = true
		if agent.MaxTurns != nil && *agent.MaxTurns < 1 {
			issues = append(issues, fmt.Sprintf("agents[%d].maxTurns must be >= 1 when set", i))
		}
		if agent.IsDefault {
			defaultCount++
		}
		switch v := agent.ToolAllowlist.(type) {
		case string:
			if v != "*" {
				issues = append(issues, fmt.Sprintf(`agents[%d].toolAllowlist string value must be "*"`, i))
			}
		case []any, nil:
			// a list of tool names, or absent (defaulted to "*")
		default:
			issues = append(issues, fmt.Sprintf(`agents[%d].toolAllowlist must be "*" or a list of strings`, i))
		}
	}
	if len(cfg.Agents) > 0 && defaultCount != 1 {
		issues = append(issues, fmt.Sprintf("exactly one agent must set isDefault; found %d", defaultCount))
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

// Overlay holds the effective config plus an admin-applied in-memory
// overlay (§9): reads go through an atomic.Pointer so request handlers never
// block on a writer, while `PUT /forge-admin/config/{section}` writes take a
// mutex and atomically publish a new merged snapshot. Nothing here is
// persisted; a restart reverts to the file-loaded config.
type Overlay struct {
	base    *Config
	current atomic.Pointer[Config]
	mu      sync.Mutex
}

// NewOverlay seeds the overlay with the file-loaded config.
func NewOverlay(base *Config) *Overlay {
	o := &Overlay{base: base}
	o.current.Store(base)
	return o
}

// Effective returns the current config snapshot, overlay applied.
func (o *Overlay) Effective() *Config {
	return o.current.Load()
}

// Section names accepted by the admin overlay endpoint (§6).
const (
	SectionModel        = "model"
	SectionHitl         = "hitl"
	SectionPermissions  = "permissions"
	SectionConversation = "conversation"
)

// ApplySection merges patch onto the named section of a copy of the current
// snapshot and publishes the result. It never touches cfg.base, so a
// restart (or a future "reset overlay" admin action) can always recover the
// file-loaded config.
func (o *Overlay) ApplySection(section string, patch map[string]any) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	next := *o.current.Load()
	switch section {
	case SectionModel:
		if v, ok := patch["defaultModel"].(string); ok {
			next.DefaultModel = v
		}
	case SectionHitl:
		if v, ok := patch["defaultHitlLevel"].(string); ok {
			next.DefaultHitlLevel = v
		}
	case SectionPermissions:
		if v, ok := patch["allowUserModelSelect"].(bool); ok {
			next.AllowUserModelSelect = v
		}
		if v, ok := patch["allowUserHitlConfig"].(bool); ok {
			next.AllowUserHitlConfig = v
		}
	case SectionConversation:
		if v, ok := patch["window"].(int); ok {
			next.Conversation.Window = v
		} else if v, ok := patch["window"].(float64); ok {
			next.Conversation.Window = int(v)
		}
	default:
		return fmt.Errorf("unknown config section %q", section)
	}

	o.current.Store(&next)
	return nil
}
