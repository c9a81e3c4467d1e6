package verifier

import (
	"testing"

	"github.com/forgehq/sidecar/pkg/models"
)

func TestCheckSchemaBlocksOnMissingRequired(t *testing.T) {
	spec := models.SchemaVerifierSpec{Required: []string{"status"}}
	res := CheckSchema(spec, map[string]interface{}{"other": "x"})
	if res.Outcome != models.OutcomeBlock {
		t.Fatalf("expected block, got %s", res.Outcome)
	}
}

func TestCheckSchemaWarnsOnTypeMismatch(t *testing.T) {
	spec := models.SchemaVerifierSpec{Properties: map[string]string{"count": "number"}}
	res := CheckSchema(spec, map[string]interface{}{"count": "not-a-number"})
	if res.Outcome != models.OutcomeWarn {
		t.Fatalf("expected warn, got %s", res.Outcome)
	}
}

func TestCheckSchemaPassesWhenSatisfied(t *testing.T) {
	spec := models.SchemaVerifierSpec{
		Required:   []string{"status"},
		Properties: map[string]string{"status": "string", "count": "number"},
	}
	res := CheckSchema(spec, map[string]interface{}{"status": "ok", "count": float64(3)})
	if res.Outcome != models.OutcomePass {
		t.Fatalf("expected pass, got %s: %s", res.Outcome, res.Message)
	}
}
