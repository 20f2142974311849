package orphan

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// IdentifierLookup asks whether anything on disk still carries an identifier.
// An error means the answer is unknown.
type IdentifierLookup interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// DefaultLookupTimeout bounds one mdfind invocation
const DefaultLookupTimeout = 5 * time.Second

// MdfindLookup queries the Spotlight index for a bundle identifier
type MdfindLookup struct {
	Timeout time.Duration
	// run is swapped in tests
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewMdfindLookup creates a Spotlight lookup
func NewMdfindLookup(timeout time.Duration) *MdfindLookup {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &MdfindLookup{Timeout: timeout, run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Exists implements IdentifierLookup
func (m *MdfindLookup) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.Timeout)
	defer cancel()

	query := fmt.Sprintf("kMDItemCFBundleIdentifier == %q", id)
	out, err := m.run(ctx, "mdfind", query)
	if err != nil {
		return false, fmt.Errorf("mdfind %s: %w", id, err)
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// SweepOnlyLookup never reports presence, leaving the decision to the
// installed-application sweep. Used where no system-wide index exists.
type SweepOnlyLookup struct{}

// Exists implements IdentifierLookup
func (SweepOnlyLookup) Exists(context.Context, string) (bool, error) {
	return false, nil
}

// DefaultLookup returns the best lookup available on this system
func DefaultLookup(ttl time.Duration) IdentifierLookup {
	if _, err := exec.LookPath("mdfind"); err == nil {
		return NewLookupCache(NewMdfindLookup(DefaultLookupTimeout), DefaultCacheSize, ttl)
	}
	return SweepOnlyLookup{}
}

// normalize is the form identifiers are compared in
func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
