package owner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

type bundleInfo struct {
	Identifier string `plist:"CFBundleIdentifier"`
	Name       string `plist:"CFBundleName"`
}

// BundleIdentifier reads CFBundleIdentifier from an .app bundle's Info.plist
func BundleIdentifier(appPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(appPath, "Contents", "Info.plist"))
	if err != nil {
		return "", err
	}

	var info bundleInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("failed to parse Info.plist of %s: %w", appPath, err)
	}
	if info.Identifier == "" {
		return "", fmt.Errorf("%s has no bundle identifier", appPath)
	}
	return info.Identifier, nil
}

// enclosingBundle returns the outermost .app directory containing exe
func enclosingBundle(exe string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(exe), "/")
	for i, p := range parts {
		if strings.HasSuffix(p, ".app") {
			return filepath.FromSlash(strings.Join(parts[:i+1], "/")), true
		}
	}
	return "", false
}
