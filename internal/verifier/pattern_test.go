package verifier

import (
	"testing"

	"github.com/forgehq/sidecar/pkg/models"
)

func TestCheckPatternMatchMissing(t *testing.T) {
	spec := models.PatternVerifierSpec{Match: `^ok:`, Outcome: models.OutcomeBlock}
	res, err := CheckPattern(spec, map[string]interface{}{"text": "something else"})
	if err != nil {
		t.Fatalf("check pattern: %v", err)
	}
	if res.Outcome != models.OutcomeBlock {
		t.Fatalf("expected block, got %s", res.Outcome)
	}
}

func TestCheckPatternRejectMatches(t *testing.T) {
	spec := models.PatternVerifierSpec{Reject: `(?i)secret`}
	res, err := CheckPattern(spec, map[string]interface{}{"text": "the secret key is X"})
	if err != nil {
		t.Fatalf("check pattern: %v", err)
	}
	if res.Outcome != models.OutcomeWarn {
		t.Fatalf("expected default warn outcome, got %s", res.Outcome)
	}
}

func TestCheckPatternPassesWithNoRulesTriggered(t *testing.T) {
	spec := models.PatternVerifierSpec{Match: `^ok:`, Reject: `danger`}
	res, err := CheckPattern(spec, map[string]interface{}{"text": "ok: all good"})
	if err != nil {
		t.Fatalf("check pattern: %v", err)
	}
	if res.Outcome != models.OutcomePass {
		t.Fatalf("expected pass, got %s", res.Outcome)
	}
}

func TestCheckPatternFallsBackToJSONStringifyWithoutText(t *testing.T) {
	spec := models.PatternVerifierSpec{Reject: `forbidden`}
	res, err := CheckPattern(spec, map[string]interface{}{"status": "forbidden"})
	if err != nil {
		t.Fatalf("check pattern: %v", err)
	}
	if res.Outcome != models.OutcomeWarn {
		t.Fatalf("expected warn from stringified result match, got %s", res.Outcome)
	}
}
