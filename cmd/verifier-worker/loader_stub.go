//go:build windows

package main

import (
	"fmt"

	"github.com/forgehq/sidecar/pkg/verifiersdk"
)

// errWindowsNotSupported indicates that dynamic plugin loading is not
// available on Windows; sandboxed custom verifiers require a Linux/macOS
// worker host (WSL2 or a container, same as the rest of the plugin system).
var errWindowsNotSupported = fmt.Errorf("dynamic verifier loading (.so files) is not supported on Windows")

func loadVerifier(path, exportName string) (verifiersdk.Verifier, error) {
	return nil, errWindowsNotSupported
}
