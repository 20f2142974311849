// Package testutil provides test helpers and fixtures for reclaim tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// TestFixture holds paths to a fake home directory laid out like a user's
type TestFixture struct {
	T       *testing.T
	RootDir string // Root temp directory (auto-cleaned)

	HomeDir    string
	LibraryDir string
	CachesDir  string
	SupportDir string
	AgentsDir  string
	TrashDir   string
	ConfigDir  string
}

// NewFixture creates a new test fixture with a standard home layout
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	root := t.TempDir()
	home := filepath.Join(root, "home")
	lib := filepath.Join(home, "Library")

	f := &TestFixture{
		T:          t,
		RootDir:    root,
		HomeDir:    home,
		LibraryDir: lib,
		CachesDir:  filepath.Join(lib, "Caches"),
		SupportDir: filepath.Join(lib, "Application Support"),
		AgentsDir:  filepath.Join(lib, "LaunchAgents"),
		TrashDir:   filepath.Join(home, ".Trash"),
		ConfigDir:  filepath.Join(home, ".config", "reclaim"),
	}

	dirs := []string{
		f.CachesDir,
		f.SupportDir,
		f.AgentsDir,
		f.TrashDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateSizedFile creates a zero-filled file of exactly size bytes
func (f *TestFixture) CreateSizedFile(relPath string, size int) string {
	f.T.Helper()
	return f.CreateFile(relPath, make([]byte, size))
}

// CreateSparseFile creates a file whose apparent size is size without
// writing the bytes
func (f *TestFixture) CreateSparseFile(relPath string, size int64) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, nil)
	if err := os.Truncate(fullPath, size); err != nil {
		f.T.Fatalf("failed to size file %s: %v", fullPath, err)
	}
	return fullPath
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	f.SetAge(fullPath, age)
	return fullPath
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateDirWithAge creates a directory with a specific modification time
func (f *TestFixture) CreateDirWithAge(relPath string, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateDir(relPath)
	f.SetAge(fullPath, age)
	return fullPath
}

// SetAge sets the access and modification times of path to now minus age
func (f *TestFixture) SetAge(path string, age time.Duration) {
	f.T.Helper()

	oldTime := time.Now().Add(-age)
	if err := os.Chtimes(path, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set time for %s: %v", path, err)
	}
}

// CreateAppData creates a per-application directory under Application Support
// holding one file of size bytes, aged by age. It returns the directory path.
func (f *TestFixture) CreateAppData(name string, size int, age time.Duration) string {
	f.T.Helper()

	rel, _ := filepath.Rel(f.RootDir, filepath.Join(f.SupportDir, name))
	f.CreateSizedFile(filepath.Join(rel, "data.bin"), size)
	// the directory's mtime changes when the file is created, so age it last
	dir := filepath.Join(f.RootDir, rel)
	f.SetAge(filepath.Join(dir, "data.bin"), age)
	f.SetAge(dir, age)
	return dir
}

// CreateAppBundle creates a minimal .app bundle with an Info.plist declaring id
func (f *TestFixture) CreateAppBundle(appsRel, name, id string) string {
	f.T.Helper()

	plist := `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>` + id + `</string>
	<key>CFBundleName</key>
	<string>` + name + `</string>
</dict>
</plist>
`
	bundle := filepath.Join(appsRel, name+".app")
	f.CreateFile(filepath.Join(bundle, "Contents", "Info.plist"), []byte(plist))
	return filepath.Join(f.RootDir, bundle)
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// =============================================================================
// Permission Helpers
// =============================================================================

// CreateUnreadableDir creates a directory holding a file, then removes all
// permissions from it so traversal cannot list it.
func (f *TestFixture) CreateUnreadableDir(relPath string, size int) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	f.CreateSizedFile(filepath.Join(relPath, "hidden.bin"), size)
	if err := os.Chmod(dirPath, 0000); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	// Restore permissions so TempDir cleanup works
	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// CreateReadOnlyDir creates a read-only directory (files inside can't be deleted)
func (f *TestFixture) CreateReadOnlyDir(relPath string) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	f.CreateFile(filepath.Join(relPath, "trapped.txt"), []byte("trapped"))
	if err := os.Chmod(dirPath, 0555); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath string) string {
	return filepath.Join(f.RootDir, relPath)
}

// =============================================================================
// Assertion Helpers
// =============================================================================

// FileExists checks if a file exists without following symlinks
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// =============================================================================
// Environment Helpers
// =============================================================================

// IsRoot returns true if running as root
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}

// IsLinux returns true if running on Linux
func IsLinux() bool {
	return runtime.GOOS == "linux"
}
