package platform

import "path/filepath"

// getMacOSInfo returns platform-specific information for macOS
func getMacOSInfo(homeDir, username string) *Info {
	lib := filepath.Join(homeDir, "Library")

	return &Info{
		OS:          MacOS,
		HomeDir:     homeDir,
		Username:    username,
		TrashDir:    filepath.Join(homeDir, ".Trash"),
		TrashLayout: TrashFlat,
		AppDirs: []string{
			"/Applications",
			"/Applications/Utilities",
			"/System/Applications",
			"/System/Applications/Utilities",
			filepath.Join(homeDir, "Applications"),
		},
		OrphanLocations: []string{
			filepath.Join(lib, "Application Support"),
			filepath.Join(lib, "Caches"),
			filepath.Join(lib, "Containers"),
			filepath.Join(lib, "Group Containers"),
			filepath.Join(lib, "HTTPStorages"),
			filepath.Join(lib, "Logs"),
			filepath.Join(lib, "Preferences"),
			filepath.Join(lib, "Saved Application State"),
			filepath.Join(lib, "WebKit"),
		},
		ServiceDirs: []string{
			filepath.Join(lib, "LaunchAgents"),
			"/Library/LaunchAgents",
			"/Library/LaunchDaemons",
		},
		ProtectedPaths: []string{
			"/System",
			"/bin",
			"/sbin",
			"/usr/bin",
			"/usr/sbin",
			"/usr/lib",
			"/usr/libexec",
			"/etc",
			"/private/etc",
			"/private/var/db",
			"/Library/Apple",
			"/Library/Keychains",
			"/Library/Security",
			"/Applications",
			"~/Library/Keychains",
			"~/Library/Mobile Documents",
			"~/Library/Mail",
			"~/Library/Messages",
			"~/Library/Photos",
			"~/Library/Application Support/com.apple.TCC",
			"~/Library/Application Support/MobileSync",
			"~/Library/Preferences/com.apple.",
			"~/Documents",
			"~/Desktop",
			"~/Pictures",
			"~/Music",
			"~/Movies",
			"~/.ssh",
			"~/.gnupg",
		},
	}
}
