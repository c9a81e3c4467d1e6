package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/forgehq/sidecar/pkg/models"
)

func TestPostgresStoreGetHistoryOrdersRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := &PostgresStore{db: db}

	now := time.Now()
	rows := sqlmock.NewRows([]string{"session_id", "stage", "role", "content", "agent_id", "created_at"}).
		AddRow("sess-1", "intake", "user", "hi", "", now).
		AddRow("sess-1", "respond", "assistant", "hello", "", now.Add(time.Second))

	mock.ExpectQuery("SELECT session_id, stage, role, content").
		WithArgs("sess-1").
		WillReturnRows(rows)

	turns, err := store.GetHistory(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != models.RoleUser || turns[1].Role != models.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresStorePersistMessageInsertsRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	store := &PostgresStore{db: db}

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS conversations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_conversations_session").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("sess-1", "intake", "user", "hi").
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := store.PersistMessage(context.Background(), "sess-1", "intake", models.RoleUser, "hi"); err != nil {
		t.Fatalf("persist message: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
