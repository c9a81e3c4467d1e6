package verifier

import (
	"encoding/json"
	"regexp"

	"github.com/forgehq/sidecar/pkg/models"
)

// CheckPattern evaluates the stringified result against the spec's match
// and reject regexes (§4.5).
func CheckPattern(spec models.PatternVerifierSpec, result map[string]interface{}) (Result, error) {
	outcome := spec.Outcome
	if outcome == "" {
		outcome = models.OutcomeWarn
	}
	text := stringifyResult(result)

	if spec.Match != "" {
		re, err := regexp.Compile(spec.Match)
		if err != nil {
			return Result{}, err
		}
		if !re.MatchString(text) {
			return Result{Outcome: outcome, Message: "result did not match required pattern"}, nil
		}
	}
	if spec.Reject != "" {
		re, err := regexp.Compile(spec.Reject)
		if err != nil {
			return Result{}, err
		}
		if re.MatchString(text) {
			return Result{Outcome: outcome, Message: "result matched rejected pattern"}, nil
		}
	}
	return Result{Outcome: models.OutcomePass}, nil
}

// stringifyResult is result.text when present, else the JSON encoding of
// the whole result object.
func stringifyResult(result map[string]interface{}) string {
	if text, ok := result["text"].(string); ok {
		return text
	}
	b, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(b)
}
