package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// =============================================================================
// Default Tests
// =============================================================================

func TestDefaultFor(t *testing.T) {
	for _, p := range []platform.Platform{platform.MacOS, platform.Linux} {
		t.Run(string(p), func(t *testing.T) {
			info, err := platform.InfoFor(p, "/home/tester", "tester")
			if err != nil {
				t.Fatalf("InfoFor failed: %v", err)
			}
			cfg := DefaultFor(info)

			if len(cfg.Targets) == 0 {
				t.Fatal("expected a default target catalog")
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("default config should validate: %v", err)
			}
			if !cfg.Clean.CheckRunning {
				t.Error("expected CheckRunning to be enabled by default")
			}
			if cfg.Clean.BatchSize != 10 {
				t.Errorf("expected BatchSize 10, got %d", cfg.Clean.BatchSize)
			}
			if cfg.Orphans.InactivityDays != 60 {
				t.Errorf("expected InactivityDays 60, got %d", cfg.Orphans.InactivityDays)
			}
			if cfg.Log.MaxSizeMB != 5 {
				t.Errorf("expected MaxSizeMB 5, got %d", cfg.Log.MaxSizeMB)
			}
			if cfg.Scan.IncludeHidden {
				t.Error("expected hidden entries to be excluded by default")
			}

			for _, loc := range cfg.Orphans.Locations {
				if strings.HasPrefix(loc, "/home/tester") {
					t.Errorf("location %s should be home-relative", loc)
				}
			}
		})
	}
}

func TestDefaultTargetsAdmin(t *testing.T) {
	info, _ := platform.InfoFor(platform.MacOS, "/Users/tester", "tester")
	for _, target := range DefaultFor(info).Targets {
		inHome := strings.HasPrefix(target.Path, "~")
		if inHome == target.AdminRequired {
			t.Errorf("target %s: AdminRequired = %v", target.Path, target.AdminRequired)
		}
	}
}

func TestBuiltinRules(t *testing.T) {
	info, _ := platform.InfoFor(platform.MacOS, "/Users/tester", "tester")
	cfg := DefaultFor(info)
	policy := cfg.Policy(info)

	if !policy.IsProtectedPath("/System/Library/Caches") {
		t.Error("/System should be protected by default")
	}
	if !policy.IsProtectedPath("/Users/tester/Documents/file.txt") {
		t.Error("~/Documents should be protected by default")
	}
	if !policy.IsProtectedOrphan("com.apple.Safari") {
		t.Error("com.apple. identifiers should never be orphans")
	}
	if policy.IsProtectedPath("/Users/tester/Library/Caches/com.example.app") {
		t.Error("user caches should not be protected by default")
	}
}

func TestHomeRelative(t *testing.T) {
	got := homeRelative([]string{"/home/u", "/home/u/.cache", "/home/user2/x", "/var/cache"}, "/home/u")
	want := []string{"~", "~/.cache", "/home/user2/x", "/var/cache"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("homeRelative() = %v, want %v", got, want)
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not error for non-existent file: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.Clean.BatchSize != 10 {
		t.Error("expected default values")
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
targets:
  - path: "~/Library/Caches"
    category: caches
    expand_one_level: true
  - path: "/Library/Caches"
    category: system_caches
    admin_required: true
whitelist:
  paths:
    - "~/Projects"
  app_ids:
    - "com.example.editor"
orphans:
  inactivity_days: 30
  lookup_cache_ttl: "1m"
clean:
  dry_run: true
  batch_size: 5
log:
  max_size_mb: 2
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(cfg.Targets))
	}
	if !cfg.Targets[0].ExpandOneLevel || cfg.Targets[0].Category != "caches" {
		t.Errorf("unexpected first target %+v", cfg.Targets[0])
	}
	if !cfg.Targets[1].AdminRequired {
		t.Error("expected the second target to require admin")
	}
	if len(cfg.Whitelist.Paths) != 1 || cfg.Whitelist.AppIDs[0] != "com.example.editor" {
		t.Errorf("unexpected whitelist %+v", cfg.Whitelist)
	}
	if cfg.Orphans.InactivityThreshold() != 30*24*time.Hour {
		t.Errorf("expected a 30 day threshold, got %v", cfg.Orphans.InactivityThreshold())
	}
	if ttl, _ := cfg.Orphans.CacheTTL(); ttl != time.Minute {
		t.Errorf("expected a 1m cache TTL, got %v", ttl)
	}
	if !cfg.Clean.DryRun || cfg.Clean.BatchSize != 5 {
		t.Errorf("unexpected clean section %+v", cfg.Clean)
	}
	if cfg.Log.MaxSizeMB != 2 || cfg.Log.Level != "debug" {
		t.Errorf("unexpected log section %+v", cfg.Log)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `
clean:
  batch_size: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Clean.BatchSize != 3 {
		t.Errorf("expected BatchSize 3, got %d", cfg.Clean.BatchSize)
	}
	// unspecified values keep their defaults
	if !cfg.Clean.CheckRunning {
		t.Error("expected CheckRunning to keep its default")
	}
	if cfg.Orphans.InactivityDays != 60 {
		t.Errorf("expected InactivityDays 60, got %d", cfg.Orphans.InactivityDays)
	}
	if len(cfg.Targets) != len(GetDefault().Targets) {
		t.Error("expected the default target catalog")
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load failed for empty config: %v", err)
	}
	if cfg.Log.MaxSizeMB != 5 {
		t.Error("expected defaults for an empty file")
	}
}

func TestLoadConfigWithComments(t *testing.T) {
	cfg, err := Load(writeConfig(t, GetExampleConfig()))
	if err != nil {
		t.Fatalf("example config should load: %v", err)
	}
	if len(cfg.Whitelist.Paths) != 2 {
		t.Errorf("expected 2 whitelist paths from the example, got %d", len(cfg.Whitelist.Paths))
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "targets: [unclosed"},
		{"relative target", "targets:\n  - path: Library/Caches\n    category: caches\n"},
		{"target without category", "targets:\n  - path: ~/Library/Caches\n"},
		{"traversal in whitelist", "whitelist:\n  paths:\n    - ~/../etc\n"},
		{"relative whitelist", "whitelist:\n  paths:\n    - Projects\n"},
		{"negative inactivity", "orphans:\n  inactivity_days: -1\n"},
		{"bad ttl", "orphans:\n  lookup_cache_ttl: soon\n"},
		{"negative batch", "clean:\n  batch_size: -2\n"},
		{"unknown level", "log:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Errorf("expected Load to fail for %q", tt.content)
			}
		})
	}
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidateWhitelistGlob(t *testing.T) {
	cfg := GetDefault()
	cfg.Whitelist.Paths = []string{"~/Library/Caches/*/keep", "/opt/data"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid globs to pass: %v", err)
	}

	cfg.Whitelist.Paths = []string{"/tmp/*[unclosed"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected a malformed glob to fail")
	}
}

func TestValidateZeroValues(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero values mean defaults and should pass: %v", err)
	}
}

// =============================================================================
// Save Tests
// =============================================================================

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")

	cfg := GetDefault()
	cfg.Whitelist.Paths = []string{"~/Projects"}
	cfg.Clean.DryRun = true

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Clean.DryRun || len(loaded.Whitelist.Paths) != 1 {
		t.Errorf("round trip lost values: %+v", loaded)
	}

	data, _ := os.ReadFile(path)
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved file is not yaml: %v", err)
	}
	for _, section := range []string{"targets", "whitelist", "scan", "orphans", "clean", "log"} {
		if _, ok := raw[section]; !ok {
			t.Errorf("saved config is missing section %s", section)
		}
	}
}

func TestEnsureConfigExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	created, err := EnsureConfigExists(path)
	if err != nil || !created {
		t.Fatalf("EnsureConfigExists() = %v, %v; want created", created, err)
	}
	created, err = EnsureConfigExists(path)
	if err != nil || created {
		t.Errorf("second EnsureConfigExists() = %v, %v; want existing", created, err)
	}
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Error("GetConfigPath should return absolute path")
	}
	if filepath.Base(path) != "config.yaml" || filepath.Base(filepath.Dir(path)) != "reclaim" {
		t.Errorf("expected .../reclaim/config.yaml, got %s", path)
	}
}
