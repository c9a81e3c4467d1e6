package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
defaultModel: claude-3-5-sonnet-20241022
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Mode != "trust" {
		t.Fatalf("expected default auth mode trust, got %q", cfg.Auth.Mode)
	}
	if cfg.Conversation.Store != "sqlite" {
		t.Fatalf("expected default conversation store sqlite, got %q", cfg.Conversation.Store)
	}
	if cfg.Conversation.Window != 20 {
		t.Fatalf("expected default window 20, got %d", cfg.Conversation.Window)
	}
	if cfg.Sidecar.Port != 8088 {
		t.Fatalf("expected default port 8088, got %d", cfg.Sidecar.Port)
	}
	if cfg.RateLimit.MaxRequests != 60 {
		t.Fatalf("expected default maxRequests 60, got %d", cfg.RateLimit.MaxRequests)
	}
}

func TestLoadRejectsVerifyModeWithoutSigningKey(t *testing.T) {
	path := writeConfig(t, `
auth:
  mode: verify
`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ConfigValidationError
	if !errorsAs(err, &verr) {
		t.Fatalf("expected ConfigValidationError, got %T: %v", err, err)
	}
}

func TestLoadRejectsPortOutOfRange(t *testing.T) {
	path := writeConfig(t, `
sidecar:
  port: 70000
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for out-of-range port")
	}
}

func TestLoadRejectsMultipleDefaultAgents(t *testing.T) {
	path := writeConfig(t, `
agents:
  - id: support
    isDefault: true
  - id: billing
    isDefault: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for two default agents")
	}
}

func TestLoadRejectsInvalidAgentID(t *testing.T) {
	path := writeConfig(t, `
agents:
  - id: "Not Valid!"
    isDefault: true
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for invalid agent id")
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	os.Setenv("SIDECAR_TEST_ADMIN_KEY", "secret-from-env")
	defer os.Unsetenv("SIDECAR_TEST_ADMIN_KEY")

	path := writeConfig(t, `
adminKey: ${SIDECAR_TEST_ADMIN_KEY}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AdminKey != "secret-from-env" {
		t.Fatalf("expected expanded admin key, got %q", cfg.AdminKey)
	}
}

func TestOverlayApplySectionDoesNotMutateBase(t *testing.T) {
	base := &Config{DefaultModel: "claude-3-5-sonnet-20241022"}
	overlay := NewOverlay(base)

	if err := overlay.ApplySection(SectionModel, map[string]any{"defaultModel": "gpt-4o"}); err != nil {
		t.Fatalf("apply section: %v", err)
	}

	if overlay.Effective().DefaultModel != "gpt-4o" {
		t.Fatalf("expected overlay to apply, got %q", overlay.Effective().DefaultModel)
	}
	if base.DefaultModel != "claude-3-5-sonnet-20241022" {
		t.Fatalf("expected base config untouched, got %q", base.DefaultModel)
	}
}

func TestOverlayApplyUnknownSectionErrors(t *testing.T) {
	overlay := NewOverlay(&Config{})
	if err := overlay.ApplySection("nonsense", nil); err == nil {
		t.Fatalf("expected error for unknown section")
	}
}

// errorsAs avoids importing "errors" just for a single As call site twice.
func errorsAs(err error, target **ConfigValidationError) bool {
	if verr, ok := err.(*ConfigValidationError); ok {
		*target = verr
		return true
	}
	return false
}
