package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/google/uuid"
	"github.com/forgehq/sidecar/pkg/models"
)

// PostgresConfig configures the Postgres-backed store.
type PostgresConfig struct {
	URL string
}

// PostgresStore persists turns in a `conversations` table, created lazily on
// first write (§4.3).
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and lazily prepares the schema.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			stage      TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			agent_id   TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_conversations_session
		ON conversations (session_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}
	return nil
}

// CreateSession reserves an opaque session id; no row is written until the
// first PersistMessage call.
func (p *PostgresStore) CreateSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PersistMessage lazily creates the schema on first write, then inserts a
// turn.
func (p *PostgresStore) PersistMessage(ctx context.Context, sessionID, stage string, role models.Role, content string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, stage, role, content)
		VALUES ($1, $2, $3, $4)`,
		sessionID, stage, string(role), content)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// GetHistory returns turns in chronological order for sessionID.
func (p *PostgresStore) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, stage, role, content, COALESCE(agent_id, ''), created_at
		FROM conversations
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var role string
		if err := rows.Scan(&t.SessionID, &t.Stage, &role, &t.Content, &t.AgentID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = models.Role(role)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// GetIncompleteSessions returns sessions whose latest system turn is not the
// completion sentinel.
func (p *PostgresStore) GetIncompleteSessions(ctx context.Context) ([]models.IncompleteSession, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT session_id FROM conversations`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session id: %w", err)
		}
		sessionIDs = append(sessionIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []models.IncompleteSession
	for _, id := range sessionIDs {
		turns, err := p.GetHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		if isComplete(turns) {
			continue
		}
		out = append(out, models.IncompleteSession{
			SessionID:   id,
			Stage:       latestStage(turns),
			LastUpdated: latestUpdate(turns),
		})
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
