package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forgehq/sidecar/internal/resolver"
	"github.com/forgehq/sidecar/pkg/models"
)

// SQLiteCatalog persists the agent/preference/prompt/tool/verifier registry
// in a local SQLite database. Schema is created eagerly, matching
// internal/store.SQLiteStore and internal/hitl.SQLiteStore.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens (creating if absent) a SQLite database at path.
func NewSQLiteCatalog(path string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	c := &SQLiteCatalog{db: db}
	if err := c.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLiteCatalog) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id                       TEXT PRIMARY KEY,
			display_name             TEXT NOT NULL,
			system_prompt            TEXT,
			default_model            TEXT,
			default_hitl_level       TEXT,
			allow_user_model_select  BOOLEAN NOT NULL DEFAULT 0,
			allow_user_hitl_config   BOOLEAN NOT NULL DEFAULT 0,
			tool_allowlist           TEXT NOT NULL DEFAULT '*',
			max_turns                INTEGER,
			max_tokens               INTEGER,
			enabled                  BOOLEAN NOT NULL DEFAULT 1,
			is_default               BOOLEAN NOT NULL DEFAULT 0,
			seeded_from_config       BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id    TEXT PRIMARY KEY,
			model      TEXT,
			hitl_level TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS prompt_versions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id     TEXT NOT NULL,
			version      TEXT NOT NULL,
			content      TEXT NOT NULL,
			notes        TEXT,
			is_active    BOOLEAN NOT NULL DEFAULT 0,
			activated_at DATETIME,
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prompt_versions_agent ON prompt_versions (agent_id)`,
		`CREATE TABLE IF NOT EXISTS tools (
			name               TEXT PRIMARY KEY,
			lifecycle_state    TEXT NOT NULL,
			spec               TEXT NOT NULL,
			baseline_pass_rate REAL NOT NULL DEFAULT 0,
			promoted_at        DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS verifiers (
			name         TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			type         TEXT NOT NULL,
			category     TEXT NOT NULL,
			aciru_order  TEXT NOT NULL,
			description  TEXT,
			schema       TEXT,
			pattern      TEXT,
			custom       TEXT
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

func (c *SQLiteCatalog) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, display_name, system_prompt, default_model, default_hitl_level,
		allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns, max_tokens,
		enabled, is_default, seeded_from_config FROM agents WHERE id = ?`, id)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *SQLiteCatalog) GetDefaultAgent(ctx context.Context) (*models.Agent, error) {
	row := c.db.QueryRowContext(ctx, `SELECT id, display_name, system_prompt, default_model, default_hitl_level,
		allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns, max_tokens,
		enabled, is_default, seeded_from_config FROM agents WHERE is_default = 1 LIMIT 1`)
	a, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return a, err
}

func (c *SQLiteCatalog) ListAgents(ctx context.Context) ([]models.Agent, error) {
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

func (c *SQLiteCatalog) UpsertAgent(ctx context.Context, a models.Agent) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO agents (id, display_name, system_prompt, default_model,
		default_hitl_level, allow_user_model_select, allow_user_hitl_config, tool_allowlist, max_turns,
		max_tokens, enabled, is_default, seeded_from_config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

func (c *SQLiteCatalog) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	row := c.db.QueryRowContext(ctx, `SELECT user_id, model, hitl_level FROM user_preferences WHERE user_id = ?`, userID)
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

func (c *SQLiteCatalog) SavePreferences(ctx context.Context, p models.UserPreferences) error {
	var hitl *string
	if p.HitlLevel != nil {
		s := string(*p.HitlLevel)
		hitl = &s
	}
	_, err := c.db.ExecContext(ctx, `INSERT INTO user_preferences (user_id, model, hitl_level) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET model = excluded.model, hitl_level = excluded.hitl_level`,
		p.UserID, p.Model, hitl)
	return err
}

func (c *SQLiteCatalog) ActivePrompt(ctx context.Context, agentID string) (resolver.ActivePromptVersion, error) {
	row := c.db.QueryRowContext(ctx, `SELECT content FROM prompt_versions WHERE agent_id = ? AND is_active = 1 LIMIT 1`, agentID)
	var content string
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return noActiveContent, nil
		}
		return nil, err
	}
	return activeContent{content: content, ok: true}, nil
}

func (c *SQLiteCatalog) ListPromptVersions(ctx context.Context, agentID string) ([]models.PromptVersion, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, version, content, notes, is_active, activated_at, created_at
		FROM prompt_versions WHERE agent_id = ? ORDER BY created_at`, agentID)
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

func (c *SQLiteCatalog) CreatePromptVersion(ctx context.Context, agentID string, pv models.PromptVersion) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO prompt_versions (agent_id, version, content, notes, is_active, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`, agentID, pv.Version, pv.Content, pv.Notes, time.Now())
	return err
}

func (c *SQLiteCatalog) ActivatePromptVersion(ctx context.Context, agentID, version string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = 0, activated_at = NULL WHERE agent_id = ?`, agentID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE prompt_versions SET is_active = 1, activated_at = ? WHERE agent_id = ? AND version = ?`,
		time.Now(), agentID, version)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (c *SQLiteCatalog) ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error) {
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

func (c *SQLiteCatalog) UpsertTool(ctx context.Context, t models.ToolRegistryEntry) error {
	spec, err := json.Marshal(t.Spec)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO tools (name, lifecycle_state, spec, baseline_pass_rate, promoted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET lifecycle_state = excluded.lifecycle_state, spec = excluded.spec,
		baseline_pass_rate = excluded.baseline_pass_rate, promoted_at = excluded.promoted_at`,
		t.Name, t.LifecycleState, string(spec), t.BaselinePassRate, t.PromotedAt)
	return err
}

func (c *SQLiteCatalog) ListVerifiers(ctx context.Context) ([]models.Verifier, error) {
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

func (c *SQLiteCatalog) ListBindings(ctx context.Context) ([]models.VerifierBinding, error) {
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

func (c *SQLiteCatalog) UpsertVerifier(ctx context.Context, v models.Verifier) error {
	schema, pattern, custom, err := marshalVerifierSpecs(v)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO verifiers (name, display_name, type, category, aciru_order, description, schema, pattern, custom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET display_name = excluded.display_name, type = excluded.type,
		category = excluded.category, aciru_order = excluded.aciru_order, description = excluded.description,
		schema = excluded.schema, pattern = excluded.pattern, custom = excluded.custom`,
		v.Name, v.DisplayName, v.Type, v.Category, v.Order, v.Description, schema, pattern, custom)
	return err
}

func (c *SQLiteCatalog) BindVerifier(ctx context.Context, b models.VerifierBinding) error {
	_, err := c.db.ExecContext(ctx, `INSERT INTO verifier_bindings (verifier_name, tool_name) VALUES (?, ?)
		ON CONFLICT (verifier_name, tool_name) DO NOTHING`, b.VerifierName, b.ToolName)
	return err
}

func (c *SQLiteCatalog) Close() error { return c.db.Close() }

// rowScanner lets scanAgent/scanTool/scanVerifier share code between
// *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	var systemPrompt, defaultModel, defaultHitl sql.NullString
	var maxTurns, maxTokens sql.NullInt64
	if err := row.Scan(&a.ID, &a.DisplayName, &systemPrompt, &defaultModel, &defaultHitl,
		&a.AllowUserModelSelect, &a.AllowUserHitlConfig, &a.ToolAllowlistRaw, &maxTurns, &maxTokens,
		&a.Enabled, &a.IsDefault, &a.SeededFromConfig); err != nil {
		return nil, err
	}
	if systemPrompt.Valid {
		a.SystemPrompt = &systemPrompt.String
	}
	if defaultModel.Valid {
		a.DefaultModel = &defaultModel.String
	}
	if defaultHitl.Valid {
		level := models.HitlLevel(defaultHitl.String)
		a.DefaultHitlLevel = &level
	}
	if maxTurns.Valid {
		n := int(maxTurns.Int64)
		a.MaxTurns = &n
	}
	if maxTokens.Valid {
		n := int(maxTokens.Int64)
		a.MaxTokens = &n
	}
	return &a, nil
}

func scanTool(row rowScanner) (models.ToolRegistryEntry, error) {
	var t models.ToolRegistryEntry
	var spec string
	var promotedAt sql.NullTime
	if err := row.Scan(&t.Name, &t.LifecycleState, &spec, &t.BaselinePassRate, &promotedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(spec), &t.Spec); err != nil {
		return t, fmt.Errorf("decode tool spec %q: %w", t.Name, err)
	}
	if promotedAt.Valid {
		t.PromotedAt = &promotedAt.Time
	}
	return t, nil
}

func scanVerifier(row rowScanner) (models.Verifier, error) {
	var v models.Verifier
	var description, schema, pattern, custom sql.NullString
	if err := row.Scan(&v.Name, &v.DisplayName, &v.Type, &v.Category, &v.Order, &description, &schema, &pattern, &custom); err != nil {
		return v, err
	}
	v.Description = description.String
	if schema.Valid {
		var s models.SchemaVerifierSpec
		if err := json.Unmarshal([]byte(schema.String), &s); err != nil {
			return v, fmt.Errorf("decode verifier schema %q: %w", v.Name, err)
		}
		v.Schema = &s
	}
	if pattern.Valid {
		var p models.PatternVerifierSpec
		if err := json.Unmarshal([]byte(pattern.String), &p); err != nil {
			return v, fmt.Errorf("decode verifier pattern %q: %w", v.Name, err)
		}
		v.Pattern = &p
	}
	if custom.Valid {
		var cu models.CustomVerifierSpec
		if err := json.Unmarshal([]byte(custom.String), &cu); err != nil {
			return v, fmt.Errorf("decode verifier custom %q: %w", v.Name, err)
		}
		v.Custom = &cu
	}
	return v, nil
}

func marshalVerifierSpecs(v models.Verifier) (schema, pattern, custom *string, err error) {
	if v.Schema != nil {
		b, err := json.Marshal(v.Schema)
		if err != nil {
			return nil, nil, nil, err
		}
		s := string(b)
		schema = &s
	}
	if v.Pattern != nil {
		b, err := json.Marshal(v.Pattern)
		if err != nil {
			return nil, nil, nil, err
		}
		s := string(b)
		pattern = &s
	}
	if v.Custom != nil {
		b, err := json.Marshal(v.Custom)
		if err != nil {
			return nil, nil, nil, err
		}
		s := string(b)
		custom = &s
	}
	return schema, pattern, custom, nil
}
