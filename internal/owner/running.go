package owner

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/fenilsonani/reclaim/internal/log"
)

// RunningApps lists the identifiers of applications that are running now
type RunningApps interface {
	RunningIdentifiers(ctx context.Context) (map[string]struct{}, error)
}

// ProcessLister derives running identifiers from the process table. Each
// process contributes its lower-cased name and, when its executable lives
// inside an .app bundle, that bundle's identifier.
type ProcessLister struct {
	// bundleID is swapped in tests
	bundleID func(appPath string) (string, error)
}

// NewProcessLister creates a lister backed by gopsutil
func NewProcessLister() *ProcessLister {
	return &ProcessLister{bundleID: BundleIdentifier}
}

// RunningIdentifiers implements RunningApps
func (pl *ProcessLister) RunningIdentifiers(ctx context.Context) (map[string]struct{}, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	ids := make(map[string]struct{})
	bundles := make(map[string]string)

	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if name, err := p.NameWithContext(ctx); err == nil && name != "" {
			ids[strings.ToLower(name)] = struct{}{}
		}

		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		app, ok := enclosingBundle(exe)
		if !ok {
			continue
		}
		id, seen := bundles[app]
		if !seen {
			id, err = pl.bundleID(app)
			if err != nil {
				log.Debug().Err(err).Str("path", app).Msg("unreadable bundle")
			}
			bundles[app] = id
		}
		if id != "" {
			ids[strings.ToLower(id)] = struct{}{}
		}
	}

	return ids, nil
}

// StaticApps is a fixed identifier set
type StaticApps []string

// RunningIdentifiers implements RunningApps
func (s StaticApps) RunningIdentifiers(context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(s))
	for _, id := range s {
		ids[strings.ToLower(id)] = struct{}{}
	}
	return ids, nil
}
