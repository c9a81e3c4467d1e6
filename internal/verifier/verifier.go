// Package verifier executes the ACIRU-ordered verifier pipeline against a
// tool result (§4.5) and hosts the out-of-process worker pool that runs
// untrusted custom verifiers (§4.6).
package verifier

import "github.com/forgehq/sidecar/pkg/models"

// Role is the degraded-failure class a tool belongs to: read/analysis tools
// degrade to warn on verifier failure, write tools degrade to block.
type Role string

const (
	RoleAny   Role = "any"
	RoleWrite Role = "write"
)

// RoleFor derives a tool's role from its category.
func RoleFor(category models.ToolCategory) Role {
	if category.ToolRole() == "write" {
		return RoleWrite
	}
	return RoleAny
}

// DegradeOutcome is the outcome substituted for a verifier exception,
// timeout, queue-full, or worker crash, per role.
func DegradeOutcome(role Role) models.VerifierOutcome {
	if role == RoleWrite {
		return models.OutcomeBlock
	}
	return models.OutcomeWarn
}

// Result is a single verifier's verdict.
type Result struct {
	Verifier string
	Outcome  models.VerifierOutcome
	Message  string
}

// Outcome is the pipeline's aggregate verdict for one tool result: every
// warn collected along the way, and the blocking verifier (if any) that
// ended the chain early.
type Outcome struct {
	Final    models.VerifierOutcome
	Warnings []Result
	Blocked  *Result
}
