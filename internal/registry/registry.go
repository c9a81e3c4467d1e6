// Package registry builds the in-memory tool and verifier indices consulted
// once per request: the set of promoted tools, and the tool → []Verifier
// binding index ordered by ACIRU key (§3, §4.5).
package registry

import (
	"context"
	"sort"

	"github.com/forgehq/sidecar/pkg/models"
)

// ToolStore persists tool registry rows.
type ToolStore interface {
	ListTools(ctx context.Context) ([]models.ToolRegistryEntry, error)
}

// VerifierStore persists verifiers and their tool bindings.
type VerifierStore interface {
	ListVerifiers(ctx context.Context) ([]models.Verifier, error)
	ListBindings(ctx context.Context) ([]models.VerifierBinding, error)
}

// Index is the per-request snapshot built from the tool/verifier stores:
// only promoted tools, and a binding index sorted by ACIRU order with
// verifier name as the tiebreak.
type Index struct {
	tools     map[string]models.ToolRegistryEntry
	toolOrder []string
	bindings  map[string][]models.Verifier
	wildcard  []models.Verifier
}

// Build loads the promoted tool set and the verifier binding index.
func Build(ctx context.Context, tools ToolStore, verifiers VerifierStore) (*Index, error) {
	allTools, err := tools.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	allVerifiers, err := verifiers.ListVerifiers(ctx)
	if err != nil {
		return nil, err
	}
	bindings, err := verifiers.ListBindings(ctx)
	if err != nil {
		return nil, err
	}

	verifierByName := make(map[string]models.Verifier, len(allVerifiers))
	for _, v := range allVerifiers {
		verifierByName[v.Name] = v
	}

	idx := &Index{
		tools:    make(map[string]models.ToolRegistryEntry),
		bindings: make(map[string][]models.Verifier),
	}
	for _, t := range allTools {
		if t.LifecycleState != models.ToolPromoted {
			continue
		}
		idx.tools[t.Name] = t
		idx.toolOrder = append(idx.toolOrder, t.Name)
	}
	sort.Strings(idx.toolOrder)

	byTool := make(map[string][]models.Verifier)
	var wildcard []models.Verifier
	for _, b := range bindings {
		v, ok := verifierByName[b.VerifierName]
		if !ok {
			continue
		}
		if b.ToolName == "*" {
			wildcard = append(wildcard, v)
			continue
		}
		byTool[b.ToolName] = append(byTool[b.ToolName], v)
	}

	sortVerifiers(wildcard)
	idx.wildcard = wildcard
	for tool, list := range byTool {
		sortVerifiers(list)
		idx.bindings[tool] = list
	}

	return idx, nil
}

// sortVerifiers orders by ACIRU order key ascending, then by verifier name
// as the stable tiebreak (§4.5: "Order stability: verifiers of equal key
// sort by verifier name as a secondary key").
func sortVerifiers(verifiers []models.Verifier) {
	sort.Slice(verifiers, func(i, j int) bool {
		if verifiers[i].Order != verifiers[j].Order {
			return verifiers[i].Order < verifiers[j].Order
		}
		return verifiers[i].Name < verifiers[j].Name
	})
}

// Tools returns the promoted tool set in stable (name-sorted) order.
func (idx *Index) Tools() []models.ToolRegistryEntry {
	out := make([]models.ToolRegistryEntry, 0, len(idx.toolOrder))
	for _, name := range idx.toolOrder {
		out = append(out, idx.tools[name])
	}
	return out
}

// Tool looks up a single promoted tool by name.
func (idx *Index) Tool(name string) (models.ToolRegistryEntry, bool) {
	t, ok := idx.tools[name]
	return t, ok
}

// VerifiersFor returns the verifiers bound to toolName, merged with those
// bound to the wildcard "*", in ACIRU order.
func (idx *Index) VerifiersFor(toolName string) []models.Verifier {
	specific := idx.bindings[toolName]
	if len(idx.wildcard) == 0 {
		return specific
	}
	if len(specific) == 0 {
		return idx.wildcard
	}
	merged := make([]models.Verifier, 0, len(specific)+len(idx.wildcard))
	merged = append(merged, specific...)
	merged = append(merged, idx.wildcard...)
	sortVerifiers(merged)
	return merged
}
