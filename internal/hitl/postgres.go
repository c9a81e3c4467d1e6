package hitl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/forgehq/sidecar/pkg/models"
)

// PostgresConfig configures the Postgres-backed pause store.
type PostgresConfig struct {
	URL string
}

// PostgresStore persists pause state in the `hitl_pauses` table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and prepares the schema.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (p *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS hitl_pauses (
			token      TEXT PRIMARY KEY,
			state      BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create hitl_pauses table: %w", err)
	}
	return nil
}

// Save upserts state under its token.
func (p *PostgresStore) Save(ctx context.Context, state models.HitlPauseState) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO hitl_pauses (token, state, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token) DO UPDATE SET state = excluded.state,
			created_at = excluded.created_at, expires_at = excluded.expires_at`,
		state.ResumeToken, state.State, state.CreatedAt, state.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save pause: %w", err)
	}
	return nil
}

// Resume atomically fetches and deletes the row for token within a
// transaction.
func (p *PostgresStore) Resume(ctx context.Context, token string) (models.HitlPauseState, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.HitlPauseState{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ps models.HitlPauseState
	ps.ResumeToken = token
	err = tx.QueryRowContext(ctx, `
		SELECT state, created_at, expires_at FROM hitl_pauses WHERE token = $1 FOR UPDATE`, token).
		Scan(&ps.State, &ps.CreatedAt, &ps.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.HitlPauseState{}, ErrNotFound
	}
	if err != nil {
		return models.HitlPauseState{}, fmt.Errorf("query pause: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hitl_pauses WHERE token = $1`, token); err != nil {
		return models.HitlPauseState{}, fmt.Errorf("delete pause: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.HitlPauseState{}, fmt.Errorf("commit: %w", err)
	}
	return ps, nil
}

// Sweep removes rows past their expiry.
func (p *PostgresStore) Sweep(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM hitl_pauses WHERE expires_at < $1`, time.Now())
	return err
}

// Close releases the database handle.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
