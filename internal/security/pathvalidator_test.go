package security

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckInjection(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		shouldError bool
		errorMsg    string
	}{
		{
			name: "absolute path - valid",
			path: "/Users/ada/Library/Caches/com.example.app",
		},
		{
			name: "name with spaces and parens - valid",
			path: "/Users/ada/Library/Application Support/Foo (1)",
		},
		{
			name: "dots inside a name - valid",
			path: "/Users/ada/Library/Caches/com.example..weird",
		},
		{
			name:        "relative path",
			path:        "Library/Caches",
			shouldError: true,
			errorMsg:    "must be absolute",
		},
		{
			name:        "empty path",
			path:        "",
			shouldError: true,
			errorMsg:    "must be absolute",
		},
		{
			name:        "traversal in the middle",
			path:        "/Users/ada/Library/Caches/../../../etc/passwd",
			shouldError: true,
			errorMsg:    "directory traversal",
		},
		{
			name:        "traversal at the end",
			path:        "/Users/ada/Library/Caches/..",
			shouldError: true,
			errorMsg:    "directory traversal",
		},
		{
			name:        "newline",
			path:        "/tmp/test\nmalicious",
			shouldError: true,
			errorMsg:    "control characters",
		},
		{
			name:        "null byte",
			path:        "/tmp/test\x00malicious",
			shouldError: true,
			errorMsg:    "control characters",
		},
		{
			name:        "delete character",
			path:        "/tmp/test\x7f",
			shouldError: true,
			errorMsg:    "control characters",
		},
		{
			name:        "doubled leading slash",
			path:        "//System/Library/Caches",
			shouldError: true,
			errorMsg:    "suspicious elements",
		},
		{
			name:        "dot segment",
			path:        "/./System/Library",
			shouldError: true,
			errorMsg:    "suspicious elements",
		},
		{
			name:        "doubled inner slash",
			path:        "/Users/ada//.ssh/id_rsa",
			shouldError: true,
			errorMsg:    "suspicious elements",
		},
		{
			name:        "trailing slash",
			path:        "/Users/ada/Library/Caches/",
			shouldError: true,
			errorMsg:    "suspicious elements",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckInjection(tt.path)
			if tt.shouldError {
				if err == nil {
					t.Fatalf("expected error for path %q", tt.path)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
				if !errors.Is(err, ErrProtected) {
					t.Errorf("expected error to match ErrProtected")
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateGlobPattern(t *testing.T) {
	tests := []struct {
		pattern     string
		shouldError bool
	}{
		{"*.log", false},
		{"/Users/*/Projects/*", false},
		{"../*", true},
		{"[", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			err := ValidateGlobPattern(tt.pattern)
			if (err != nil) != tt.shouldError {
				t.Errorf("ValidateGlobPattern(%q) error = %v, shouldError %v", tt.pattern, err, tt.shouldError)
			}
		})
	}
}
