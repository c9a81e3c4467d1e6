package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/forgehq/sidecar/internal/agent"
	"github.com/forgehq/sidecar/internal/config"
	"github.com/forgehq/sidecar/internal/store"
	"github.com/forgehq/sidecar/pkg/models"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cat := agent.NewMemoryCatalog()
	model := "claude-3-5-sonnet-20241022"
	seed := models.Agent{ID: "default", DisplayName: "Default", DefaultModel: &model, Enabled: true, IsDefault: true, ToolAllowlistRaw: "*"}
	if err := cat.UpsertAgent(context.Background(), seed); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	overlay := config.NewOverlay(&config.Config{
		DefaultModel:     model,
		DefaultHitlLevel: "standard",
		Conversation:     config.ConversationConfig{Window: 20},
	})
	return NewServer(Config{
		Addr:    ":0",
		Overlay: overlay,
		Catalog: cat,
		Store:   store.NewMemoryStore(),
	})
}

func TestHandleHealthz(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandlePreferencesRequiresAuth(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/agent-api/preferences", nil)
	rec := httptest.NewRecorder()
	s.handlePreferences(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without an authenticated user, got %d", rec.Code)
	}
}

func TestHandlePreferencesRoundTrip(t *testing.T) {
	s := testServer(t)
	ctx := context.WithValue(context.Background(), userIDContextKey, "user-1")

	putBody := strings.NewReader(`{"model":"gpt-4o","hitlLevel":"cautious"}`)
	putReq := httptest.NewRequest(http.MethodPut, "/agent-api/preferences", putBody).WithContext(ctx)
	putRec := httptest.NewRecorder()
	s.handlePreferences(putRec, putReq)
	if putRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on PUT, got %d: %s", putRec.Code, putRec.Body.String())
	}

	getReq := httptest.NewRequest(http.MethodGet, "/agent-api/preferences", nil).WithContext(ctx)
	getRec := httptest.NewRecorder()
	s.handlePreferences(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on GET, got %d", getRec.Code)
	}
	if !strings.Contains(getRec.Body.String(), "gpt-4o") || !strings.Contains(getRec.Body.String(), "cautious") {
		t.Fatalf("unexpected body: %s", getRec.Body.String())
	}
}

func TestRouteLabelCollapsesAdminConfigSection(t *testing.T) {
	if got := routeLabel("/forge-admin/config/model"); got != "/forge-admin/config/{section}" {
		t.Fatalf("unexpected route label: %q", got)
	}
	if got := routeLabel("/agent-api/chat"); got != "/agent-api/chat" {
		t.Fatalf("unexpected route label: %q", got)
	}
}
