// Package owner decides whether the application that owns a cache or support
// path is currently running.
package owner

import (
	"path/filepath"
	"strings"
)

// knownFolders maps well-known folder names that are not reverse-domain
// identifiers to the bundle identifier of their owner. Best effort: anything
// unmapped is treated as having no detectable owner.
var knownFolders = map[string]string{
	"google":         "com.google.Chrome",
	"firefox":        "org.mozilla.firefox",
	"mozilla":        "org.mozilla.firefox",
	"slack":          "com.tinyspeck.slackmacgap",
	"code":           "com.microsoft.VSCode",
	"zoom.us":        "us.zoom.xos",
	"spotify":        "com.spotify.client",
	"discord":        "com.hnc.Discord",
	"bravesoftware":  "com.brave.Browser",
	"microsoft edge": "com.microsoft.edgemac",
	"jetbrains":      "com.jetbrains.toolbox",
}

// IsReverseDomain reports whether name looks like a bundle identifier:
// at least minParts non-empty dot-separated parts, the first at least two
// characters long.
func IsReverseDomain(name string, minParts int) bool {
	parts := strings.Split(name, ".")
	if len(parts) < minParts {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return len(parts[0]) >= 2
}

// ExtractIdentifier finds the application identifier a path belongs to.
// Segments are searched deepest first for a reverse-domain name; if none is
// found the known folder table is consulted the same way.
func ExtractIdentifier(path string) (string, bool) {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")

	for i := len(segments) - 1; i >= 0; i-- {
		if IsReverseDomain(segments[i], 3) {
			return segments[i], true
		}
	}

	for i := len(segments) - 1; i >= 0; i-- {
		if id, ok := knownFolders[strings.ToLower(segments[i])]; ok {
			return id, true
		}
	}

	return "", false
}
