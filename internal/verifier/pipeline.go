package verifier

import (
	"context"
	"path/filepath"

	"github.com/forgehq/sidecar/pkg/models"
)

// Pipeline runs a tool's bound verifiers, already ACIRU-ordered by the
// registry, against its result.
type Pipeline struct {
	pool *WorkerPool // nil disables custom verifiers; they degrade per role
}

// NewPipeline builds a pipeline. pool may be nil when sandboxing is
// disabled in configuration.
func NewPipeline(pool *WorkerPool) *Pipeline {
	return &Pipeline{pool: pool}
}

// Run executes verifiers in order against result. A block aborts the
// remaining chain; warns accumulate and evaluation continues.
func (p *Pipeline) Run(ctx context.Context, toolName string, category models.ToolCategory, verifiers []models.Verifier, result map[string]interface{}) Outcome {
	role := RoleFor(category)
	out := Outcome{Final: models.OutcomePass}

	for _, v := range verifiers {
		select {
		case <-ctx.Done():
			return degrade(out, Result{Verifier: v.Name, Outcome: DegradeOutcome(role), Message: "cancelled"})
		default:
		}

		res := p.runOne(ctx, toolName, role, v, result)
		res.Verifier = v.Name

		switch res.Outcome {
		case models.OutcomeWarn:
			out.Warnings = append(out.Warnings, res)
		case models.OutcomeBlock:
			out.Final = models.OutcomeBlock
			blocked := res
			out.Blocked = &blocked
			return out
		}
	}
	return out
}

func degrade(out Outcome, r Result) Outcome {
	if r.Outcome == models.OutcomeBlock {
		out.Final = models.OutcomeBlock
		out.Blocked = &r
		return out
	}
	out.Warnings = append(out.Warnings, r)
	return out
}

func (p *Pipeline) runOne(ctx context.Context, toolName string, role Role, v models.Verifier, result map[string]interface{}) Result {
	switch v.Type {
	case models.VerifierSchema:
		if v.Schema == nil {
			return Result{Outcome: models.OutcomePass}
		}
		return CheckSchema(*v.Schema, result)
	case models.VerifierPattern:
		if v.Pattern == nil {
			return Result{Outcome: models.OutcomePass}
		}
		res, err := CheckPattern(*v.Pattern, result)
		if err != nil {
			return Result{Outcome: DegradeOutcome(role), Message: err.Error()}
		}
		return res
	case models.VerifierCustom:
		return p.runCustom(ctx, toolName, role, v, result)
	default:
		return Result{Outcome: models.OutcomePass}
	}
}

func (p *Pipeline) runCustom(ctx context.Context, toolName string, role Role, v models.Verifier, result map[string]interface{}) Result {
	if v.Custom == nil {
		return Result{Outcome: DegradeOutcome(role), Message: "missing custom verifier spec"}
	}
	if !filepath.IsAbs(v.Custom.FilePath) {
		return Result{Outcome: models.OutcomeWarn, Message: "Invalid verifier path"}
	}
	if p.pool == nil {
		return Result{Outcome: DegradeOutcome(role), Message: "sandbox disabled"}
	}
	req := workerRequest{
		VerifierPath: v.Custom.FilePath,
		ExportName:   v.Custom.ExportName,
		ToolName:     toolName,
		Result:       result,
	}
	return p.pool.Submit(ctx, role, req)
}
