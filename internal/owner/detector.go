package owner

import (
	"context"
	"strings"
)

// Detector takes snapshots of the running application set
type Detector struct {
	apps RunningApps
}

// NewDetector creates a detector over apps
func NewDetector(apps RunningApps) *Detector {
	return &Detector{apps: apps}
}

// Snapshot captures the running set once so a whole clean pass sees the same view
func (d *Detector) Snapshot(ctx context.Context) (*Snapshot, error) {
	raw, err := d.apps.RunningIdentifiers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]struct{}, len(raw))
	for id := range raw {
		ids[strings.ToLower(id)] = struct{}{}
	}
	return &Snapshot{ids: ids}, nil
}

// Snapshot is the running identifier set at one point in time
type Snapshot struct {
	ids map[string]struct{}
}

// Contains reports whether id is running, ignoring case
func (s *Snapshot) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids[strings.ToLower(id)]
	return ok
}

// OwnerRunning extracts the owning identifier of path and reports whether it is running
func (s *Snapshot) OwnerRunning(path string) (string, bool) {
	id, ok := ExtractIdentifier(path)
	if !ok {
		return "", false
	}
	return id, s.Contains(id)
}
