//go:build !windows

package main

import (
	"fmt"
	"plugin"

	"github.com/forgehq/sidecar/pkg/verifiersdk"
)

// loadVerifier opens the .so at path (validated against traversal the same
// way the teacher's plugin loader validates channel plugins) and looks up
// exportName, type-asserting it to verifiersdk.Verifier.
func loadVerifier(path, exportName string) (verifiersdk.Verifier, error) {
	validated, err := validatePluginPath(path)
	if err != nil {
		return nil, fmt.Errorf("invalid verifier path: %w", err)
	}

	plug, err := plugin.Open(validated)
	if err != nil {
		return nil, fmt.Errorf("open verifier plugin %s: %w", validated, err)
	}

	symbol, err := plug.Lookup(exportName)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", exportName, err)
	}

	switch v := symbol.(type) {
	case verifiersdk.Verifier:
		return v, nil
	case *verifiersdk.Verifier:
		return *v, nil
	default:
		return nil, fmt.Errorf("plugin symbol %s does not implement verifiersdk.Verifier", exportName)
	}
}
