package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file inside the config directory
const FileName = "config.yaml"

// Config represents the application configuration
type Config struct {
	Targets   []scanner.ScanTarget `yaml:"targets"`
	Whitelist security.Rules       `yaml:"whitelist"`
	Scan      ScanConfig           `yaml:"scan"`
	Orphans   OrphanConfig         `yaml:"orphans"`
	Clean     CleanConfig          `yaml:"clean"`
	Log       LogConfig            `yaml:"log"`
}

// ScanConfig tunes the traversal engine
type ScanConfig struct {
	IncludeHidden  bool `yaml:"include_hidden"`
	MaxConcurrency int  `yaml:"max_concurrency"`
	YieldEvery     int  `yaml:"yield_every"`
	TreeDepth      int  `yaml:"tree_depth"`
}

// OrphanConfig holds orphan detection settings
type OrphanConfig struct {
	InactivityDays int      `yaml:"inactivity_days"`
	Locations      []string `yaml:"locations"`
	ServiceDirs    []string `yaml:"service_dirs"`
	AppDirs        []string `yaml:"app_dirs"`
	// LookupCacheTTL is a Go duration string such as "10m".
	LookupCacheTTL string `yaml:"lookup_cache_ttl"`
}

// CleanConfig holds deletion settings
type CleanConfig struct {
	DryRun       bool `yaml:"dry_run"`
	CheckRunning bool `yaml:"check_running"`
	BatchSize    int  `yaml:"batch_size"`
}

// LogConfig holds operation log and diagnostic log settings
type LogConfig struct {
	// Path of the operation log. Empty means operations.log in the config dir.
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	// Level is the diagnostic log level: debug, info, warn or error.
	Level string `yaml:"level"`
}

// InactivityThreshold returns the orphan inactivity threshold as a duration
func (o OrphanConfig) InactivityThreshold() time.Duration {
	return time.Duration(o.InactivityDays) * 24 * time.Hour
}

// CacheTTL parses LookupCacheTTL, returning 0 when unset
func (o OrphanConfig) CacheTTL() (time.Duration, error) {
	if o.LookupCacheTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(o.LookupCacheTTL)
}

// Load loads configuration from a file. Values absent from the file keep
// their defaults.
func Load(configPath string) (*Config, error) {
	cfg := GetDefault()

	// If config doesn't exist, return default config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to a file
func Save(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	for i, t := range c.Targets {
		if t.Path == "" {
			return fmt.Errorf("target %d has no path", i)
		}
		if t.Category == "" {
			return fmt.Errorf("target %s has no category", t.Path)
		}
		if err := checkConfigPath(t.Path); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}

	for _, path := range c.Whitelist.Paths {
		if err := checkConfigPath(path); err != nil {
			return fmt.Errorf("invalid whitelist path: %w", err)
		}
		if strings.ContainsAny(path, "*?") {
			if err := security.ValidateGlobPattern(path); err != nil {
				return fmt.Errorf("invalid whitelist pattern '%s': %w", path, err)
			}
		}
	}

	if c.Scan.MaxConcurrency < 0 {
		return fmt.Errorf("scan max_concurrency must be >= 0")
	}
	if c.Scan.YieldEvery < 0 {
		return fmt.Errorf("scan yield_every must be >= 0")
	}
	if c.Scan.TreeDepth < 0 {
		return fmt.Errorf("scan tree_depth must be >= 0")
	}

	if c.Orphans.InactivityDays < 0 {
		return fmt.Errorf("orphans inactivity_days must be >= 0")
	}
	if _, err := c.Orphans.CacheTTL(); err != nil {
		return fmt.Errorf("invalid orphans lookup_cache_ttl: %w", err)
	}
	for _, dir := range append(append([]string{}, c.Orphans.Locations...), c.Orphans.ServiceDirs...) {
		if err := checkConfigPath(dir); err != nil {
			return fmt.Errorf("invalid orphan location: %w", err)
		}
	}

	if c.Clean.BatchSize < 0 {
		return fmt.Errorf("clean batch_size must be >= 0")
	}

	if c.Log.MaxSizeMB < 0 {
		return fmt.Errorf("log max_size_mb must be >= 0")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}

	return nil
}

// checkConfigPath accepts absolute and "~"-relative paths without ".." segments
func checkConfigPath(path string) error {
	if !filepath.IsAbs(path) && path != "~" && !strings.HasPrefix(path, "~/") {
		return fmt.Errorf("path must be absolute or start with ~: %s", path)
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == ".." {
			return fmt.Errorf("path contains directory traversal: %s", path)
		}
	}
	return nil
}

// Policy builds the protection policy: built-in rules for the platform plus
// the configured whitelist as the user layer.
func (c *Config) Policy(info *platform.Info) *security.Policy {
	return security.NewPolicy(info.HomeDir, BuiltinRules(info), c.Whitelist)
}

// GetConfigPath returns the default config path
func GetConfigPath() (string, error) {
	dir, err := platform.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// EnsureConfigExists creates a default config file if it doesn't exist
func EnsureConfigExists(configPath string) (created bool, err error) {
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := Save(GetDefault(), configPath); err != nil {
		return false, err
	}
	return true, nil
}
