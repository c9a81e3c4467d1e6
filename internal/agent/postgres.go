package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/pkg/models"
)

// PostgresCatalog persists the agent/preference/prompt/tool/verifier
// registry in Postgres. Schema and query shape mirror SQLiteCatalog exactly
// (§4.2, §4.5); only placeholder syntax and column types differ.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog opens a connection and eagerly prepares the schema.
func NewPostgresCatalog(url string) (*PostgresCatalog, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	c := &PostgresCatalog{db: db}
	if err := c.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *PostgresCatalog) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id                      TEXT PRIMARY KEY,
			display_name            TEXT NOT NULL,
			system_prompt           TEXT,
			default_model           TEXT,
			default_hitl_level      TEXT,
			allow_user_model_select BOOLEAN NOT NULL DEFAULT FALSE,
			allow_user_hitl_config  BOOLEAN NOT NULL DEFAULT FALSE,
			tool_allowlist          TEXT NOT NULL DEFAULT '*',
			max_turns               INTEGER,
			max_tokens              INTEGER,
			enabled                 BOOLEAN NOT NULL DEFAULT TRUE,
			is_default              BOOLEAN NOT NULL DEFAULT FALSE,
			seeded_from_config      BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id    TEXT PRIMARY KEY,
			model      TEXT,
			hitl_level TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS prompt_versions (
			id           BIGSERIAL PRIMARY KEY,
			agent_id     TEXT NOT NULL,
			version      TEXT NOT NULL,
			content      TEXT NOT NULL,
			notes        TEXT,
			is_active    BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompt_versions_agent ON prompt_versions (agent_id)`,
		`CREATE TABLE IF NOT EXISTS tools (
			name               TEXT PRIMARY KEY,
			lifecycle_state    TEXT NOT NULL,
			spec               JSONB NOT NULL,
			baseline_pass_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			promoted_at        TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS verifiers (
			name         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			type         TEXT NOT NULL,
			category     TEXT NOT NULL,
			aciru_order  TEXT NOT NULL,
			description  TEXT,
			schema       JSONB,
			pattern      JSONB,
			custom       JSONB
		)`,
		`CREATE TABLE IF NOT EXISTS verifier_bindings (
			verifier_name TEXT NOT NULL,
			tool_name     TEXT NOT NULL,
			PRIMARY KEY (verifier_name, tool_name)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create catalog schema: %w", err)
		}
	}
	return nil
}

func (c *PostgresCatalog) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, display_name, system_prompt, default_model, default_hitl_level,
		allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns, max_tokens,
		enabled, is_default, seeded_from_config FROM agents WHERE id = $1`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *PostgresCatalog) GetDefaultAgent(ctx context.Context) (*models.Agent, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, display_name, system_prompt, default_model, default_hitl_level,
		allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns, max_tokens,
		enabled, is_default, seeded_from_config FROM agents WHERE is_default = TRUE LIMIT 1`)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *PostgresCatalog) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, display_name, system_prompt, default_model, default_hitl_level,
		allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns, max_tokens,
		enabled, is_default, seeded_from_config FROM agents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) UpsertAgent(ctx context.Context, a models.Agent) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO agents (id, display_name, system_prompt, default_model,
		default_hitl_level, allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns,
		max_tokens, enabled, is_default, seeded_from_config)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET display_name = excluded.display_name, system_prompt = excluded.system_prompt,
		default_model = excluded.default_model, default_hitl_level = excluded.default_hitl_level,
		allow_user_model_select = excluded.allow_user_model_select, allow_user_hitl_config = excluded.allow_user_hitl_config,
		tool_allowlist = excluded.tool_allowlist, max_turns = excluded.max_turns, max_tokens = excluded.max_tokens,
		enabled = excluded.enabled, is_default = excluded.is_default, seeded_from_config = excluded.seeded_from_config`,
		a.ID, a.DisplayName, a.SystemPrompt, a.DefaultModel, a.DefaultHitlLevel,
		a.AllowUserModelSelect, a.AllowUserHitlConfig, a.ToolAllowlistRaw, a.MaxTurns, a.MaxTokens,
		a.Enabled, a.IsDefault, a.SeededFromConfig)
	return err
}

func (c *PostgresCatalog) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	row := c.db.QueryRowContext(ctx, `SELECT user_id, model, hitl_level FROM user_preferences WHERE user_id = $1`, userID)
	var p models.UserPreferences
	var model, hitl sql.NullString
	if err := row.Scan(&p.UserID, &model, &hitl); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if model.Valid {
		p.Model = &model.String
	}
	if hitl.Valid {
		level := models.HitlLevel(hitl.String)
		p.HitlLevel = &level
	}
	return &p, nil
}

func (c *PostgresCatalog) SavePreferences(ctx context.Context, p models.UserPreferences) error {
	var hitl *string
	if p.HitlLevel != nil {
		s := string(*p.HitlLevel)
		hitl = &s
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO user_preferences (user_id, model, hitl_level) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET model = excluded.model, hitl_level = excluded.hitl_level`,
		p.UserID, p.Model, hitl)
	return err
}

func (c *PostgresCatalog) ActivePrompt(ctx context.Context, agentID string) (resolver.ActivePromptVersion, error) {
	row := c.db.QueryRowContext(ctx, `SELECT content FROM prompt_versions WHERE agent_id = $1 AND is_active = TRUE LIMIT 1`, agentID)
	var content string
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return noActiveContent, nil
		}
		return nil, err
	}
	return activeContent{content: content, ok: true}, nil
}

func (c *PostgresCatalog) ListPromptVersions(ctx context.Context, agentID string) ([]models.PromptVersion, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, version, content, notes, is_active, activated_at, created_at
		FROM prompt_versions WHERE agent_id = $1 ORDER BY created_at`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.PromptVersion
	for rows.Next() {
		var pv models.PromptVersion
		var notes sql.NullString
		var activatedAt sql.NullTime
		if err := rows.Scan(&pv.ID, &pv.Version, &pv.Content, &notes, &pv.IsActive, &activatedAt, &pv.CreatedAt); err != nil {
			return nil, err
		}
		pv.Notes = notes.String
		if activatedAt.Valid {
			pv.ActivatedAt = &activatedAt.Time
		}
		out = append(out, pv)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) CreatePromptVersion(ctx context.Context, agentID string, pv models.PromptVersion) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO prompt_versions (agent_id, version, content, notes, is_active, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`, agentID, pv.Version, pv.Content, pv.Notes, time.Now())
	return err
}

func (c *PostgresCatalog) ActivatePromptVersion(ctx context.Context, agentID, version string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = FALSE, activated_at = NULL WHERE agent_id = $1`, agentID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = TRUE, activated_at = $1 WHERE agent_id = $2 AND version = $3`,
		time.Now(), agentID, version)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (c *PostgresCatalog) ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, lifecycle_state, spec, baseline_pass_rate, promoted_at FROM tools ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ToolRegistryEntry
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) UpsertTool(ctx context.Context, t models.ToolRegistryEntry) error {
	spec, err := json.Marshal(t.Spec)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO tools (name, lifecycle_state, spec, baseline_pass_rate, promoted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET lifecycle_state = excluded.lifecycle_state, spec = excluded.spec,
		baseline_pass_rate = excluded.baseline_pass_rate, promoted_at = excluded.promoted_at`,
		t.Name, t.LifecycleState, string(spec), t.BaselinePassRate, t.PromotedAt)
	return err
}

func (c *PostgresCatalog) ListVerifiers(ctx context.Context) ([]models.Verifier, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, display_name, type, category, aciru_order, description, schema, pattern, custom
		FROM verifiers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Verifier
	for rows.Next() {
		v, err := scanVerifier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) ListBindings(ctx context.Context) ([]models.VerifierBinding, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT verifier_name, tool_name FROM verifier_bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.VerifierBinding
	for rows.Next() {
		var b models.VerifierBinding
		if err := rows.Scan(&b.VerifierName, &b.ToolName); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (c *PostgresCatalog) UpsertVerifier(ctx context.Context, v models.Verifier) error {
	schema, pattern, custom, err := marshalVerifierSpecs(v)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO verifiers (name, display_name, type, category, aciru_order, description, schema, pattern, custom)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET display_name = excluded.display_name, type = excluded.type,
		category = excluded.category, aciru_order = excluded.aciru_order, description = excluded.description,
		schema = excluded.schema, pattern = excluded.pattern, custom = excluded.custom`,
		v.Name, v.DisplayName, v.Type, v.Category, v.Order, v.Description, schema, pattern, custom)
	return err
}

func (c *PostgresCatalog) BindVerifier(ctx context.Context, b models.VerifierBinding) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO verifier_bindings (verifier_name, tool_name) VALUES ($1, $2)
		ON CONFLICT (verifier_name, tool_name) DO NOTHING`, b.VerifierName, b.ToolName)
	return err
}

func (c *PostgresCatalog) Close() error { return c.db.Close() }
