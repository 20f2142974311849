package orphan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fenilsonani/reclaim/internal/log"
	"github.com/fenilsonani/reclaim/internal/owner"
)

// Sweeper gathers the identifiers of installed or running applications
type Sweeper interface {
	Sweep(ctx context.Context) (map[string]struct{}, error)
}

// AppSweeper reads bundle identifiers from application directories and
// merges in the running set. Recognised entries are .app bundles, and on
// Linux flatpak application directories and .desktop files whose names are
// identifiers.
type AppSweeper struct {
	Dirs    []string
	Running owner.RunningApps
}

// Sweep implements Sweeper. Identifiers are lower-cased.
func (s *AppSweeper) Sweep(ctx context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	for _, dir := range s.Dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.sweepDir(dir, ids)
	}

	if s.Running != nil {
		running, err := s.Running.RunningIdentifiers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list running applications: %w", err)
		}
		for id := range running {
			ids[normalize(id)] = struct{}{}
		}
	}

	log.Debug().Int("identifiers", len(ids)).Msg("application sweep complete")
	return ids, nil
}

func (s *AppSweeper) sweepDir(dir string, ids map[string]struct{}) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", dir).Msg("skipping application directory")
		}
		return
	}

	for _, e := range entries {
		name := e.Name()
		path := filepath.Join(dir, name)

		switch {
		case strings.HasSuffix(name, ".app"):
			id, err := owner.BundleIdentifier(path)
			if err != nil {
				log.Debug().Err(err).Str("path", path).Msg("unreadable bundle")
				continue
			}
			ids[normalize(id)] = struct{}{}
		case strings.HasSuffix(name, ".desktop"):
			if id := strings.TrimSuffix(name, ".desktop"); owner.IsReverseDomain(id, 2) {
				ids[normalize(id)] = struct{}{}
			}
		case e.IsDir() && owner.IsReverseDomain(name, 3):
			ids[normalize(name)] = struct{}{}
		}
	}
}

// StaticSweeper is a fixed installed set
type StaticSweeper []string

// Sweep implements Sweeper
func (s StaticSweeper) Sweep(context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(s))
	for _, id := range s {
		ids[normalize(id)] = struct{}{}
	}
	return ids, nil
}
