package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/google/uuid"
	"github.com/forgehq/sidecar/pkg/models"
)

// SQLiteConfig configures the SQLite-backed store.
type SQLiteConfig struct {
	Path string
}

// SQLiteStore persists turns in a local SQLite database. Semantics match
// PostgresStore exactly; schema is created eagerly since SQLite file access
// is already local and cheap.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at cfg.Path.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			stage      TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			agent_id   TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create conversations table: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_conversations_session
		ON conversations (session_id, created_at)`)
	if err != nil {
		return fmt.Errorf("create conversations index: %w", err)
	}
	return nil
}

// CreateSession reserves an opaque session id.
func (s *SQLiteStore) CreateSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// PersistMessage inserts a turn.
func (s *SQLiteStore) PersistMessage(ctx context.Context, sessionID, stage string, role models.Role, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (session_id, stage, role, content)
		VALUES (?, ?, ?, ?)`,
		sessionID, stage, string(role), content)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

// GetHistory returns turns in chronological order for sessionID.
func (s *SQLiteStore) GetHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, stage, role, content, COALESCE(agent_id, ''), created_at
		FROM conversations
		WHERE session_id = ?
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
func (s *SQLiteStore) GetIncompleteSessions(ctx context.Context) ([]models.IncompleteSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM conversations`)
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
		turns, err := s.GetHistory(ctx, id)
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

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
