package verifier

import (
	"fmt"

	"github.com/forgehq/sidecar/pkg/models"
)

// CheckSchema verifies result contains every required key and that any
// property named in the spec has the declared JSON type (§4.5).
func CheckSchema(spec models.SchemaVerifierSpec, result map[string]interface{}) Result {
	for _, key := range spec.Required {
		if _, ok := result[key]; !ok {
			return Result{Outcome: models.OutcomeBlock, Message: fmt.Sprintf("missing required field %q", key)}
		}
	}
	for name, wantType := range spec.Properties {
		val, ok := result[name]
		if !ok {
			continue
		}
		if !matchesJSONType(val, wantType) {
			return Result{Outcome: models.OutcomeWarn, Message: fmt.Sprintf("field %q expected type %s", name, wantType)}
		}
	}
	return Result{Outcome: models.OutcomePass}
}

func matchesJSONType(v interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}
