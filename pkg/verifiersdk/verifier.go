// Package verifiersdk is the stable interface a custom-verifier plugin
// (a .so built with `go build -buildmode=plugin`) must export for
// cmd/verifier-worker to load it at runtime.
package verifiersdk

// Verifier is the symbol a custom verifier plugin exports, by the name
// configured in the tool's verifier spec (CustomVerifierSpec.ExportName).
// The exported symbol may be a Verifier value or a *Verifier pointer.
type Verifier interface {
	// Verify inspects a tool's result (and the arguments it was called
	// with) and returns a verdict: "pass", "warn", or "block", plus a
	// human-readable message explaining the verdict.
	Verify(toolName string, args, result map[string]interface{}) (outcome, message string)
}
