package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// TrashLayout selects how the trash directory is organised
type TrashLayout int

const (
	// TrashFlat is the macOS layout: items are moved directly into the trash dir.
	TrashFlat TrashLayout = iota
	// TrashXDG is the freedesktop.org layout with files/ and info/ subdirectories.
	TrashXDG
)

// Info contains platform-specific locations
type Info struct {
	OS       Platform
	HomeDir  string
	Username string

	// ConfigDir holds config.yaml and the operation log.
	ConfigDir string

	TrashDir    string
	TrashLayout TrashLayout

	// AppDirs are searched for installed application bundles.
	AppDirs []string
	// OrphanLocations are the per-application data locations whose entries
	// are matched against installed applications.
	OrphanLocations []string
	// ServiceDirs hold auto-start service descriptors.
	ServiceDirs []string

	// ProtectedPaths is the built-in path protection layer.
	ProtectedPaths []string
}

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetInfo returns information for the current user on the current platform
func GetInfo() (*Info, error) {
	currentUser, err := user.Current()
	if err != nil {
		return nil, err
	}
	return InfoFor(Detect(), currentUser.HomeDir, currentUser.Username)
}

// InfoFor builds the Info for an explicit platform and home directory.
func InfoFor(p Platform, homeDir, username string) (*Info, error) {
	var info *Info

	switch p {
	case MacOS:
		info = getMacOSInfo(homeDir, username)
	case Linux:
		info = getLinuxInfo(homeDir, username)
	default:
		return nil, ErrUnsupportedPlatform
	}

	info.ConfigDir = configDir(p, homeDir)
	return info, nil
}

// configDir is ~/.config/reclaim on every platform, honouring XDG_CONFIG_HOME on Linux.
func configDir(p Platform, homeDir string) string {
	if p == Linux {
		if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
			return filepath.Join(dir, "reclaim")
		}
	}
	return filepath.Join(homeDir, ".config", "reclaim")
}

// GetConfigDir returns the reclaim config directory for the current user
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return configDir(Detect(), homeDir), nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
