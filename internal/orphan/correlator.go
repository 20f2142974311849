// Package orphan finds application data left behind by applications that
// are no longer installed or running.
package orphan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/internal/log"
	"github.com/fenilsonani/reclaim/internal/owner"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
)

const (
	// CategoryOrphaned holds leftover application data
	CategoryOrphaned = "orphaned"
	// CategoryOrphanedServices holds leftover auto-start descriptors
	CategoryOrphanedServices = "orphaned_services"

	// DefaultInactivityThreshold is how long data must be untouched to be an orphan
	DefaultInactivityThreshold = 60 * 24 * time.Hour
)

// Extensions stripped from entry names before they are matched as identifiers
var (
	serviceExts = []string{".plist", ".desktop"}
	dataExts    = []string{".plist", ".savedState", ".binarycookies"}
)

// Config selects where and how strictly to look
type Config struct {
	InactivityThreshold time.Duration
	Locations           []string
	ServiceDirs         []string
}

// Correlator matches per-application data against installed applications
type Correlator struct {
	cfg     Config
	policy  *security.Policy
	sweeper Sweeper
	lookup  IdentifierLookup
	engine  *scanner.Engine
	now     func() time.Time
}

// New creates a Correlator. A nil lookup means SweepOnlyLookup.
func New(cfg Config, policy *security.Policy, sweeper Sweeper, lookup IdentifierLookup, engine *scanner.Engine) *Correlator {
	if cfg.InactivityThreshold <= 0 {
		cfg.InactivityThreshold = DefaultInactivityThreshold
	}
	if lookup == nil {
		lookup = SweepOnlyLookup{}
	}
	return &Correlator{
		cfg:     cfg,
		policy:  policy,
		sweeper: sweeper,
		lookup:  lookup,
		engine:  engine,
		now:     time.Now,
	}
}

type candidate struct {
	path string
	id   string
	info os.FileInfo
}

// Scan returns orphaned data directories and files, largest first
func (c *Correlator) Scan(ctx context.Context) ([]scanner.DiscoveredItem, error) {
	installed, err := c.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	var items []scanner.DiscoveredItem
	cutoff := c.now().Add(-c.cfg.InactivityThreshold)

	for _, loc := range c.cfg.Locations {
		candidates, err := c.candidates(ctx, c.policy.ExpandHome(loc), installed, false, cutoff)
		if err != nil {
			return nil, err
		}

		for _, cand := range candidates {
			size, err := c.engine.Size(ctx, cand.path)
			if err != nil {
				if errors.Is(err, scanner.ErrScanCancelled) {
					return nil, err
				}
				log.Debug().Err(err).Str("path", cand.path).Msg("skipping unsizable orphan")
				continue
			}
			if size == 0 {
				continue
			}

			items = append(items, scanner.DiscoveredItem{
				Path:     cand.path,
				Name:     cand.id,
				Size:     size,
				Category: CategoryOrphaned,
				ModTime:  cand.info.ModTime(),
			})
		}
	}

	sortBySize(items)
	return items, nil
}

// ScanServices returns auto-start descriptors whose application is gone.
// Descriptors outside the home directory need elevated removal.
func (c *Correlator) ScanServices(ctx context.Context) ([]scanner.DiscoveredItem, error) {
	installed, err := c.sweeper.Sweep(ctx)
	if err != nil {
		return nil, err
	}

	home := c.policy.Home()
	var items []scanner.DiscoveredItem

	for _, dir := range c.cfg.ServiceDirs {
		dir = c.policy.ExpandHome(dir)
		candidates, err := c.candidates(ctx, dir, installed, true, time.Time{})
		if err != nil {
			return nil, err
		}

		for _, cand := range candidates {
			items = append(items, scanner.DiscoveredItem{
				Path:          cand.path,
				Name:          cand.id,
				Size:          cand.info.Size(),
				Category:      CategoryOrphanedServices,
				ModTime:       cand.info.ModTime(),
				AdminRequired: !within(cand.path, home),
			})
		}
	}

	sortBySize(items)
	return items, nil
}

// candidates lists the entries of dir that pass the identifier checks.
// Entries modified after a non-zero cutoff are dropped before the lookup runs.
func (c *Correlator) candidates(ctx context.Context, dir string, installed map[string]struct{}, services bool, cutoff time.Time) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", dir).Msg("skipping orphan location")
		}
		return nil, nil
	}

	var out []candidate
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, scanner.ErrScanCancelled
		}

		name := e.Name()
		if services {
			if !e.Type().IsRegular() || !hasServiceExt(name) {
				continue
			}
			name = stripExt(name, serviceExts)
		} else {
			name = stripExt(name, dataExts)
		}

		path := filepath.Join(dir, e.Name())
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		if !cutoff.IsZero() && info.ModTime().After(cutoff) {
			log.Debug().Str("path", path).Str("reason", "recently modified").Msg("not an orphan")
			continue
		}
		if !c.isOrphanIdentifier(ctx, path, name, installed) {
			continue
		}
		out = append(out, candidate{path: path, id: name, info: info})
	}
	return out, nil
}

func (c *Correlator) isOrphanIdentifier(ctx context.Context, path, id string, installed map[string]struct{}) bool {
	if !owner.IsReverseDomain(id, 2) {
		return false
	}

	if c.policy.IsProtectedOrphan(id) || c.policy.IsProtectedCacheName(id) || c.policy.IsProtectedPath(path) {
		log.Debug().Str("identifier", id).Str("reason", "protected").Msg("not an orphan")
		return false
	}

	if _, ok := installed[normalize(id)]; ok {
		return false
	}

	exists, err := c.lookup.Exists(ctx, id)
	if err != nil {
		log.Debug().Err(err).Str("identifier", id).Str("reason", "lookup failed").Msg("not an orphan")
		return false
	}
	if exists {
		log.Debug().Str("identifier", id).Str("reason", "found on disk").Msg("not an orphan")
		return false
	}

	return true
}

func hasServiceExt(name string) bool {
	for _, ext := range serviceExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func stripExt(name string, exts []string) string {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

func within(path, dir string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sortBySize(items []scanner.DiscoveredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Size > items[j].Size
	})
}
