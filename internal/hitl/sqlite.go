package hitl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/forgehq/sidecar/pkg/models"
)

// SQLiteConfig configures the SQLite-backed pause store.
type SQLiteConfig struct {
	Path string
}

// SQLiteStore persists pause state in the `hitl_pauses` table (§6 persisted
// state layout).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) the pause table at cfg.Path.
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
		CREATE TABLE IF NOT EXISTS hitl_pauses (
			token      TEXT PRIMARY KEY,
			state      BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create hitl_pauses table: %w", err)
	}
	return nil
}

// Save upserts state under its token.
func (s *SQLiteStore) Save(ctx context.Context, state models.HitlPauseState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hitl_pauses (token, state, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(token) DO UPDATE SET state = excluded.state,
			created_at = excluded.created_at, expires_at = excluded.expires_at`,
		state.ResumeToken, state.State, state.CreatedAt, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save pause: %w", err)
	}
	return nil
}

// Resume atomically fetches and deletes the row for token within a
// transaction.
func (s *SQLiteStore) Resume(ctx context.Context, token string) (models.HitlPauseState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.HitlPauseState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ps models.HitlPauseState
	ps.ResumeToken = token
	err = tx.QueryRowContext(ctx, `
		SELECT state, created_at, expires_at FROM hitl_pauses WHERE token = ?`, token).
		Scan(&ps.State, &ps.CreatedAt, &ps.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HitlPauseState{}, ErrNotFound
	}
	if err != nil {
		return models.HitlPauseState{}, fmt.Errorf("query pause: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hitl_pauses WHERE token = ?`, token); err != nil {
		return models.HitlPauseState{}, fmt.Errorf("delete pause: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.HitlPauseState{}, fmt.Errorf("commit: %w", err)
	}
	return ps, nil
}

// Sweep removes rows past their expiry; the loop never reads them again but
// they would otherwise accumulate forever.
func (s *SQLiteStore) Sweep(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hitl_pauses WHERE expires_at < ?`, time.Now())
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
