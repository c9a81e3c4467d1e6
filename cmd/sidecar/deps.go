package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/internal/config"
	"github.com/forgehq/sidecar/internal/hitl"
	"github.com/forgehq/sidecar/internal/llm"
	"github.com/forgehq/sidecar/internal/retry"
	"github.com/forgehq/sidecar/internal/store"
)

func apiKeyFromEnv(name string) string { return os.Getenv(name) }

// retryOpen retries a backend Open call with exponential backoff, since a
// containerized deployment can start the sidecar before its database is
// accepting connections. Permanent errors (none of the Open constructors
// wrap one today, but the hook exists) fail on the first attempt.
func retryOpen[T any](ctx context.Context, label string, open func() (T, error)) (T, error) {
	value, result := retry.DoWithValue(ctx, retry.DefaultConfig(), open)
	if result.Err != nil {
		var zero T
		return zero, fmt.Errorf("%s: %w", label, result.Err)
	}
	return value, nil
}

// defaultHitlTTL matches §4.7's default pause TTL; there is no YAML knob for
// it because HITL state is meant to be short-lived regardless of deployment.
const defaultHitlTTL = 5 * time.Minute

// storeConfig maps conversation.{store,window,redis} onto internal/store's
// Kind-keyed Config. sqlite/postgres reuse database.url: the sidecar has one
// relational connection string, shared by the conversation store and the
// catalog, rather than two separate ones to configure in lockstep.
func storeConfig(cfg *config.Config) store.Config {
	switch cfg.Conversation.Store {
	case "postgres":
		return store.Config{Kind: store.KindPostgres, Postgres: store.PostgresConfig{URL: cfg.Database.URL}}
	case "redis":
		return store.Config{Kind: store.KindRedis, Redis: store.RedisConfig{
			URL:        cfg.Conversation.Redis.URL,
			TTLSeconds: cfg.Conversation.Redis.TTLSeconds,
		}}
	default:
		return store.Config{Kind: store.KindSQLite, SQLite: store.SQLiteConfig{Path: cfg.Database.URL}}
	}
}

// hitlConfig mirrors §4.7's Redis > Postgres > SQLite > memory priority,
// reusing the same connection info as storeConfig rather than a dedicated
// YAML block: pause state is small and short-lived, so it rides on whatever
// backend the conversation store already has configured.
func hitlConfig(cfg *config.Config) hitl.Config {
	hc := hitl.Config{TTL: defaultHitlTTL}
	switch cfg.Conversation.Store {
	case "redis":
		hc.Redis = &hitl.RedisConfig{URL: cfg.Conversation.Redis.URL}
	case "postgres":
		hc.Postgres = &hitl.PostgresConfig{URL: cfg.Database.URL}
	default:
		hc.SQLite = &hitl.SQLiteConfig{Path: cfg.Database.URL}
	}
	return hc
}

// catalogConfig maps database.{type,url} onto internal/agent's Kind-keyed
// Config for the agent/preference/prompt/registry catalog.
func catalogConfig(cfg *config.Config) agent.Config {
	kind := agent.KindSQLite
	if cfg.Database.Type == "postgres" {
		kind = agent.KindPostgres
	}
	return agent.Config{Kind: kind, DSN: cfg.Database.URL}
}

// buildProviders constructs every LLM provider the resolver's
// DeriveProvider can name, keyed by provider name. A provider with no API
// key configured is still registered (NewXProvider degrades to a
// fail-closed client) so a misconfigured deployment fails at request time
// with a clear provider error rather than a nil-map panic.
func buildProviders() (map[string]llm.Provider, error) {
	providers := make(map[string]llm.Provider, 4)

	anthropicKey := apiKeyFromEnv("ANTHROPIC_API_KEY")
	anthropicProvider, err := llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: anthropicKey})
	if err != nil {
		return nil, fmt.Errorf("build anthropic provider: %w", err)
	}
	providers["anthropic"] = anthropicProvider

	providers["openai"] = llm.NewOpenAIProvider(apiKeyFromEnv("OPENAI_API_KEY"))
	providers["deepseek"] = llm.NewOpenAIProviderWithBaseURL(apiKeyFromEnv("DEEPSEEK_API_KEY"), "https://api.deepseek.com/v1")

	googleKey := apiKeyFromEnv("GOOGLE_API_KEY")
	if googleKey == "" {
		googleKey = apiKeyFromEnv("GEMINI_API_KEY")
	}
	googleProvider, err := llm.NewGoogleProvider(llm.GoogleConfig{APIKey: googleKey})
	if err != nil {
		return nil, fmt.Errorf("build google provider: %w", err)
	}
	providers["google"] = googleProvider

	return providers, nil
}

// toolAllowlistRaw converts an AgentConfig's YAML `toolAllowlist` ("*" or a
// list of names) into the JSON-array-or-"*" string models.Agent.ToolAllowlistRaw
// expects (internal/resolver.FilterTools's wire format).
func toolAllowlistRaw(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "*", nil
	case string:
		if v == "" {
			return "*", nil
		}
		return v, nil
	case []any:
		names := make([]string, 0, len(v))
		for _, item := range v {
			name, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("toolAllowlist entries must be strings")
			}
			names = append(names, name)
		}
		data, err := json.Marshal(names)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported toolAllowlist type %T", raw)
	}
}
