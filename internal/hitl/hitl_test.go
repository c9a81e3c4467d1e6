package hitl

import (
	"context"
	"testing"
	"time"

	"github.com/forgehq/sidecar/pkg/models"
)

func specWith(requiresConfirmation bool, category models.ToolCategory) models.ToolSpec {
	return models.ToolSpec{Category: category, RequiresConfirmation: requiresConfirmation}
}

func TestShouldPauseAutonomousNeverPauses(t *testing.T) {
	if ShouldPause(models.HitlAutonomous, specWith(true, models.CategoryWrite)) {
		t.Fatalf("autonomous must never pause")
	}
}

func TestShouldPauseParanoidAlwaysPauses(t *testing.T) {
	if !ShouldPause(models.HitlParanoid, specWith(false, models.CategoryRead)) {
		t.Fatalf("paranoid must always pause")
	}
}

func TestShouldPauseCautiousOnlyOnConfirmation(t *testing.T) {
	if ShouldPause(models.HitlCautious, specWith(false, models.CategoryWrite)) {
		t.Fatalf("cautious should not pause without requiresConfirmation")
	}
	if !ShouldPause(models.HitlCautious, specWith(true, models.CategoryRead)) {
		t.Fatalf("cautious should pause when requiresConfirmation is set")
	}
}

func TestShouldPauseStandardPausesForMutatingCategoryOrConfirmation(t *testing.T) {
	if !ShouldPause(models.HitlStandard, specWith(false, models.CategoryWrite)) {
		t.Fatalf("standard should pause for write-category tools")
	}
	if ShouldPause(models.HitlStandard, specWith(false, models.CategoryRead)) {
		t.Fatalf("standard should not pause for read-category tools")
	}
	if !ShouldPause(models.HitlStandard, specWith(true, models.CategoryRead)) {
		t.Fatalf("standard should pause when requiresConfirmation is set regardless of category")
	}
}

func TestShouldPauseStandardHonorsExplicitMCPMethod(t *testing.T) {
	spec := models.ToolSpec{
		Category:   models.CategoryRead,
		MCPRouting: &models.MCPRouting{Method: "delete"},
	}
	if !ShouldPause(models.HitlStandard, spec) {
		t.Fatalf("standard should pause for an explicit DELETE routing method")
	}
}

func TestPauseResumeRoundTrips(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), time.Minute)
	ctx := context.Background()

	token, err := engine.Pause(ctx, []byte(`{"step":1}`))
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty resume token")
	}

	state, err := engine.Resume(ctx, token)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if string(state) != `{"step":1}` {
		t.Fatalf("unexpected resumed state: %s", state)
	}
}

func TestResumeIsSingleUse(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), time.Minute)
	ctx := context.Background()

	token, _ := engine.Pause(ctx, []byte("state"))
	if _, err := engine.Resume(ctx, token); err != nil {
		t.Fatalf("first resume: %v", err)
	}
	if _, err := engine.Resume(ctx, token); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on second resume, got %v", err)
	}
}

func TestResumeUnknownTokenReturnsErrNotFound(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), time.Minute)
	if _, err := engine.Resume(context.Background(), "nonexistent"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResumeExpiredTokenReturnsErrNotFound(t *testing.T) {
	engine := NewEngine(NewMemoryStore(), time.Millisecond)
	token, _ := engine.Pause(context.Background(), []byte("state"))
	time.Sleep(5 * time.Millisecond)
	if _, err := engine.Resume(context.Background(), token); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
}
