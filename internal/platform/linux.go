package platform

import (
	"os"
	"path/filepath"
)

// getLinuxInfo returns platform-specific information for Linux
func getLinuxInfo(homeDir, username string) *Info {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		cacheHome = filepath.Join(homeDir, ".cache")
	}

	return &Info{
		OS:          Linux,
		HomeDir:     homeDir,
		Username:    username,
		TrashDir:    filepath.Join(dataHome, "Trash"),
		TrashLayout: TrashXDG,
		AppDirs: []string{
			"/usr/share/applications",
			"/var/lib/flatpak/app",
			filepath.Join(dataHome, "applications"),
			filepath.Join(dataHome, "flatpak", "app"),
		},
		OrphanLocations: []string{
			filepath.Join(homeDir, ".var", "app"),
			cacheHome,
			dataHome,
		},
		ServiceDirs: []string{
			filepath.Join(homeDir, ".config", "autostart"),
		},
		ProtectedPaths: []string{
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr/bin",
			"/usr/sbin",
			"/usr/lib",
			"/var/lib/dpkg",
			"/var/lib/rpm",
			"~/.ssh",
			"~/.gnupg",
			"~/.local/share/keyrings",
			"~/Documents",
			"~/Desktop",
			"~/Pictures",
			"~/Music",
			"~/Videos",
		},
	}
}
