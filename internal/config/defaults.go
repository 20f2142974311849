package config

import (
	"slices"
	"strings"

	"github.com/fenilsonani/reclaim/internal/cleaner"
	"github.com/fenilsonani/reclaim/internal/oplog"
	"github.com/fenilsonani/reclaim/internal/orphan"
	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
)

// Default tuning values
const (
	DefaultMaxConcurrency = 4
	DefaultTreeDepth      = 2
)

// GetDefault returns the default configuration for the current platform
func GetDefault() *Config {
	info, err := platform.GetInfo()
	if err != nil {
		info = &platform.Info{OS: platform.Detect()}
	}
	return DefaultFor(info)
}

// DefaultFor returns the default configuration for a platform
func DefaultFor(info *platform.Info) *Config {
	return &Config{
		Targets: defaultTargets(info.OS),
		Whitelist: security.Rules{
			// User additions go here; built-in rules always apply
			Paths:      []string{},
			AppIDs:     []string{},
			CacheNames: []string{},
			OrphanIDs:  []string{},
		},
		Scan: ScanConfig{
			IncludeHidden:  false,
			MaxConcurrency: DefaultMaxConcurrency,
			YieldEvery:     scanner.DefaultYieldEvery,
			TreeDepth:      DefaultTreeDepth,
		},
		Orphans: OrphanConfig{
			InactivityDays: int(orphan.DefaultInactivityThreshold.Hours() / 24),
			Locations:      homeRelative(info.OrphanLocations, info.HomeDir),
			ServiceDirs:    homeRelative(info.ServiceDirs, info.HomeDir),
			AppDirs:        homeRelative(info.AppDirs, info.HomeDir),
			LookupCacheTTL: orphan.DefaultCacheTTL.String(),
		},
		Clean: CleanConfig{
			DryRun:       false,
			CheckRunning: true,
			BatchSize:    cleaner.DefaultBatchSize,
		},
		Log: LogConfig{
			MaxSizeMB: oplog.DefaultMaxSizeMB,
			Level:     "warn",
		},
	}
}

// languageCaches are package manager caches outside the per-OS cache directory
var languageCaches = []scanner.ScanTarget{
	{Path: "~/.npm/_cacache", Category: "package_managers"},
	{Path: "~/.yarn/cache", Category: "package_managers"},
	{Path: "~/.pnpm-store", Category: "package_managers"},
	{Path: "~/.gem/cache", Category: "package_managers"},
	{Path: "~/.cargo/registry/cache", Category: "package_managers"},
	{Path: "~/.m2/repository", Category: "package_managers"},
	{Path: "~/.gradle/caches", Category: "package_managers"},
	{Path: "~/.composer/cache", Category: "package_managers"},
}

func defaultTargets(p platform.Platform) []scanner.ScanTarget {
	var targets []scanner.ScanTarget
	switch p {
	case platform.MacOS:
		targets = []scanner.ScanTarget{
			{Path: "~/Library/Caches", Category: "caches", ExpandOneLevel: true},
			{Path: "/Library/Caches", Category: "system_caches", AdminRequired: true, ExpandOneLevel: true},
			{Path: "~/Library/Logs", Category: "logs", ExpandOneLevel: true},
			{Path: "/Library/Logs", Category: "system_logs", AdminRequired: true, ExpandOneLevel: true},
			{Path: "~/Library/Developer/Xcode/DerivedData", Category: "xcode", ExpandOneLevel: true},
			{Path: "~/Library/Developer/Xcode/Archives", Category: "xcode", ExpandOneLevel: true},
			{Path: "~/Library/Developer/CoreSimulator/Caches", Category: "xcode"},
		}
	case platform.Linux:
		targets = []scanner.ScanTarget{
			{Path: "~/.cache", Category: "caches", ExpandOneLevel: true},
			{Path: "/var/cache/apt/archives", Category: "system_package_cache", AdminRequired: true},
			{Path: "/var/cache/yum", Category: "system_package_cache", AdminRequired: true},
			{Path: "/var/cache/dnf", Category: "system_package_cache", AdminRequired: true},
			{Path: "/var/cache/pacman/pkg", Category: "system_package_cache", AdminRequired: true},
			{Path: "/var/lib/snapd/cache", Category: "system_package_cache", AdminRequired: true},
			{Path: "/var/log/journal", Category: "system_logs", AdminRequired: true, ExpandOneLevel: true},
		}
	default:
		return nil
	}
	return append(targets, languageCaches...)
}

// BuiltinRules returns the immutable protection layer for a platform
func BuiltinRules(info *platform.Info) security.Rules {
	return security.Rules{
		Paths: slices.Clone(info.ProtectedPaths),
		AppIDs: []string{
			"com.apple.",
			"com.1password.",
			"com.agilebits.",
			"com.bitwarden.",
			"org.keepassxc.",
			"com.yubico.",
		},
		CacheNames: []string{
			"keychain",
			"cloudkit",
			"mobile documents",
			"com.apple.bird",
			"icloud",
			"1password",
		},
		OrphanIDs: []string{
			"com.apple.",
			"org.freedesktop.",
			"org.gnome.",
			"org.kde.",
			"com.google.keystone",
			"com.microsoft.autoupdate",
		},
	}
}

// homeRelative rewrites paths under home to "~/..." so a saved config stays portable
func homeRelative(paths []string, home string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if home != "" && p == home {
			out = append(out, "~")
			continue
		}
		if home != "" && strings.HasPrefix(p, home+"/") {
			out = append(out, "~"+p[len(home):])
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetExampleConfig returns an example configuration with comments
func GetExampleConfig() string {
	return `# reclaim configuration
# Location: ~/.config/reclaim/config.yaml

# What to scan. Paths may start with ~.
# expand_one_level reports each child of the path as its own item.
targets:
  - path: "~/Library/Caches"
    category: caches
    expand_one_level: true
  - path: "/Library/Caches"
    category: system_caches
    admin_required: true     # removed through the administrator prompt
    expand_one_level: true

# Your protection rules, on top of the built-in ones
whitelist:
  paths:
    - "~/Projects"
    - "~/Library/Caches/*/keep"   # globs are allowed
  app_ids:
    - "com.example.editor"
  cache_names:
    - "important"
  orphan_ids:
    - "com.example.legacy"

scan:
  include_hidden: false
  max_concurrency: 4
  tree_depth: 2

orphans:
  inactivity_days: 60        # only data untouched for this long is orphaned
  lookup_cache_ttl: "10m"

clean:
  dry_run: false
  check_running: true        # skip items whose application is running
  batch_size: 10             # paths per administrator prompt

log:
  max_size_mb: 5             # operations.log rotates past this; one backup is kept
  level: warn
`
}
