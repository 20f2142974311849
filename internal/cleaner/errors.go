package cleaner

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fenilsonani/reclaim/internal/security"
)

// ErrorReason categorizes why an item was not removed
type ErrorReason int

const (
	// ReasonProtectedPath means the whitelist or the injection check refused the path.
	ReasonProtectedPath ErrorReason = iota
	// ReasonAccessDenied means the OS or the user refused the required permission.
	ReasonAccessDenied
	// ReasonDeletionFailed covers every other failure.
	ReasonDeletionFailed
)

// String returns a human-readable error reason
func (e ErrorReason) String() string {
	switch e {
	case ReasonProtectedPath:
		return "Protected path"
	case ReasonAccessDenied:
		return "Access denied"
	case ReasonDeletionFailed:
		return "Deletion failed"
	default:
		return "Unspecified error"
	}
}

// Key returns the machine-readable form used in metrics and JSON output
func (e ErrorReason) Key() string {
	switch e {
	case ReasonProtectedPath:
		return "protected_path"
	case ReasonAccessDenied:
		return "access_denied"
	default:
		return "deletion_failed"
	}
}

// MarshalText implements encoding.TextMarshaler
func (e ErrorReason) MarshalText() ([]byte, error) {
	return []byte(e.Key()), nil
}

// DeletionError represents a detailed deletion error
type DeletionError struct {
	Path      string      `json:"path" yaml:"path"`
	Reason    ErrorReason `json:"reason" yaml:"reason"`
	Original  error       `json:"-" yaml:"-"`
	Retryable bool        `json:"retryable,omitempty" yaml:"retryable,omitempty"`
}

// Error implements the error interface
func (e *DeletionError) Error() string {
	if e.Original == nil {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Path, e.Reason, e.Original)
}

func (e *DeletionError) Unwrap() error {
	return e.Original
}

// UserMessage returns a user-friendly error message
func (e *DeletionError) UserMessage() string {
	switch e.Reason {
	case ReasonProtectedPath:
		return fmt.Sprintf("🛡️  Protected, not touched: %s", e.Path)
	case ReasonAccessDenied:
		if errors.Is(e.Original, ErrElevationDenied) {
			return fmt.Sprintf("⚠️  Administrator access was not granted: %s", e.Path)
		}
		return fmt.Sprintf("⚠️  Permission denied: %s", e.Path)
	default:
		if errors.Is(e.Original, os.ErrNotExist) {
			return fmt.Sprintf("ℹ️  Already gone: %s", e.Path)
		}
		if e.Retryable {
			return fmt.Sprintf("⚠️  File is being used: %s (close the application and try again)", e.Path)
		}
		return fmt.Sprintf("❌ Error deleting %s: %v", e.Path, e.Original)
	}
}

// CategorizeError analyzes an error and returns a categorized DeletionError
func CategorizeError(path string, err error) *DeletionError {
	if err == nil {
		return nil
	}

	var delErr *DeletionError
	if errors.As(err, &delErr) {
		return delErr
	}

	delErr = &DeletionError{
		Path:     path,
		Original: err,
		Reason:   ReasonDeletionFailed,
	}

	if errors.Is(err, security.ErrProtected) {
		delErr.Reason = ReasonProtectedPath
		return delErr
	}

	if errors.Is(err, ErrElevationDenied) || os.IsPermission(err) {
		delErr.Reason = ReasonAccessDenied
		return delErr
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			delErr.Reason = ReasonAccessDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			delErr.Retryable = true
		}
	}

	return delErr
}

// GroupErrors groups deletion errors by reason
func GroupErrors(errs []*DeletionError) map[ErrorReason][]*DeletionError {
	grouped := make(map[ErrorReason][]*DeletionError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*DeletionError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	var b strings.Builder
	b.WriteString("\n⚠️  Issues encountered:\n")

	if protected, ok := grouped[ReasonProtectedPath]; ok {
		fmt.Fprintf(&b, "   ├─ Protected paths: %d items\n", len(protected))
		b.WriteString("   │  └─ These are whitelisted and were never touched\n")
	}

	if denied, ok := grouped[ReasonAccessDenied]; ok {
		fmt.Fprintf(&b, "   ├─ Access denied: %d items\n", len(denied))
		b.WriteString("   │  └─ Tip: Re-run and grant administrator access when asked\n")
	}

	if failed, ok := grouped[ReasonDeletionFailed]; ok {
		fmt.Fprintf(&b, "   └─ Other failures: %d items\n", len(failed))
	}

	return b.String()
}
