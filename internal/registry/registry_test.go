package registry

import (
	"context"
	"testing"

	"github.com/forgehq/sidecar/pkg/models"
)

type fakeToolStore struct{ tools []models.ToolRegistryEntry }

func (f fakeToolStore) ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error) {
	return f.tools, nil
}

type fakeVerifierStore struct {
	verifiers []models.Verifier
	bindings  []models.VerifierBinding
}

func (f fakeVerifierStore) ListVerifiers(ctx context.Context) ([]models.Verifier, error) {
	return f.verifiers, nil
}

func (f fakeVerifierStore) ListBindings(ctx context.Context) ([]models.VerifierBinding, error) {
	return f.bindings, nil
}

func TestBuildOnlyIncludesPromotedTools(t *testing.T) {
	tools := fakeToolStore{tools: []models.ToolRegistryEntry{
		{Name: "search", LifecycleState: models.ToolPromoted},
		{Name: "experimental", LifecycleState: models.ToolCandidate},
		{Name: "retired_tool", LifecycleState: models.ToolRetired},
	}}
	verifiers := fakeVerifierStore{}

	idx, err := Build(context.Background(), tools, verifiers)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if _, ok := idx.Tool("search"); !ok {
		t.Fatalf("expected promoted tool to be present")
	}
	if _, ok := idx.Tool("experimental"); ok {
		t.Fatalf("candidate tool should not be visible")
	}
	if _, ok := idx.Tool("retired_tool"); ok {
		t.Fatalf("retired tool should not be visible")
	}
}

func TestVerifiersForOrdersByACIRUThenName(t *testing.T) {
	tools := fakeToolStore{tools: []models.ToolRegistryEntry{
		{Name: "write_file", LifecycleState: models.ToolPromoted},
	}}
	verifiers := fakeVerifierStore{
		verifiers: []models.Verifier{
			{Name: "zeta", Order: "I-0001"},
			{Name: "alpha", Order: "I-0001"},
			{Name: "beta", Order: "A-0001"},
		},
		bindings: []models.VerifierBinding{
			{VerifierName: "zeta", ToolName: "write_file"},
			{VerifierName: "alpha", ToolName: "write_file"},
			{VerifierName: "beta", ToolName: "write_file"},
		},
	}

	idx, err := Build(context.Background(), tools, verifiers)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ordered := idx.VerifiersFor("write_file")
	if len(ordered) != 3 {
		t.Fatalf("expected 3 verifiers, got %d", len(ordered))
	}
	want := []string{"beta", "alpha", "zeta"}
	for i, name := range want {
		if ordered[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, ordered[i].Name)
		}
	}
}

func TestVerifiersForMergesWildcardBindings(t *testing.T) {
	tools := fakeToolStore{tools: []models.ToolRegistryEntry{
		{Name: "any_tool", LifecycleState: models.ToolPromoted},
	}}
	verifiers := fakeVerifierStore{
		verifiers: []models.Verifier{
			{Name: "specific", Order: "C-0001"},
			{Name: "global", Order: "A-0001"},
		},
		bindings: []models.VerifierBinding{
			{VerifierName: "specific", ToolName: "any_tool"},
			{VerifierName: "global", ToolName: "*"},
		},
	}

	idx, err := Build(context.Background(), tools, verifiers)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	ordered := idx.VerifiersFor("any_tool")
	if len(ordered) != 2 {
		t.Fatalf("expected 2 verifiers (specific + wildcard), got %d", len(ordered))
	}
	if ordered[0].Name != "global" || ordered[1].Name != "specific" {
		t.Fatalf("unexpected order: %+v", ordered)
	}
}
