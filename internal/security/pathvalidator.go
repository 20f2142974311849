package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// CheckInjection rejects paths that could escape their intended location or
// smuggle content into a command line: relative paths, ".." components, raw
// control characters and any path that is not already in canonical form.
// It runs before every mutation, independent of any rule.
func CheckInjection(path string) error {
	if path == "" || !filepath.IsAbs(path) {
		return &ProtectedError{Path: path, Reason: "path must be absolute"}
	}

	for _, r := range path {
		if r < 0x20 || r == 0x7f {
			return &ProtectedError{Path: path, Reason: "path contains control characters"}
		}
	}

	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return &ProtectedError{Path: path, Reason: "path contains directory traversal"}
		}
	}

	// prefix rules only hold for canonical paths ("//System", "/./System")
	if filepath.Clean(path) != path {
		return &ProtectedError{Path: path, Reason: "path contains suspicious elements"}
	}

	return nil
}

// ValidateGlobPattern validates that a glob pattern is safe
func ValidateGlobPattern(pattern string) error {
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}

	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}
