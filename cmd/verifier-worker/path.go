package main

import (
	"fmt"
	"path/filepath"
	"strings"
)

// errPathTraversal indicates an attempted path traversal attack.
var errPathTraversal = fmt.Errorf("path traversal detected")

// validatePluginPath checks that a verifier plugin path is safe and
// doesn't attempt path traversal. Returns the cleaned absolute path or an
// error.
func validatePluginPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("verifier path is empty")
	}

	cleaned := filepath.Clean(path)
	if containsPathTraversalSegment(cleaned) {
		return "", fmt.Errorf("%w: path contains '..' after cleaning: %s", errPathTraversal, path)
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if containsPathTraversalSegment(absPath) {
		return "", fmt.Errorf("%w: absolute path contains '..': %s", errPathTraversal, absPath)
	}

	return absPath, nil
}

func containsPathTraversalSegment(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}
