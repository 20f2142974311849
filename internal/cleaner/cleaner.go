// Package cleaner removes selected scan items. Ordinary items are moved to
// the trash; items that need administrator access are removed in batches
// through an Elevator. Every attempt is written to the operation log.
package cleaner

import (
	"context"
	"fmt"

	"github.com/fenilsonani/reclaim/internal/log"
	"github.com/fenilsonani/reclaim/internal/metrics"
	"github.com/fenilsonani/reclaim/internal/oplog"
	"github.com/fenilsonani/reclaim/internal/owner"
	"github.com/fenilsonani/reclaim/internal/progress"
	"github.com/fenilsonani/reclaim/internal/scanner"
	"github.com/fenilsonani/reclaim/internal/security"
)

// DefaultBatchSize is the number of paths per elevated call
const DefaultBatchSize = 10

// Deps are the collaborators of a Cleaner. Owners, Elevator, Log, Metrics
// and Progress may be nil.
type Deps struct {
	Policy   *security.Policy
	Owners   *owner.Detector
	Trash    Trash
	Elevator Elevator
	Log      *oplog.Log
	Metrics  *metrics.Metrics
	Progress progress.Func
}

// Options tune a Cleaner
type Options struct {
	// CheckRunning skips items whose owning application is running.
	CheckRunning bool
	BatchSize    int
}

// Cleaner handles file deletion with safeguards
type Cleaner struct {
	deps  Deps
	opts  Options
	perms *PermissionManager
}

// New creates a new Cleaner
func New(deps Deps, opts Options) *Cleaner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if deps.Progress == nil {
		deps.Progress = progress.Nop
	}
	return &Cleaner{
		deps:  deps,
		opts:  opts,
		perms: NewPermissionManager(),
	}
}

type pass struct {
	outcome *DeletionOutcome
	dryRun  bool
	snap    *owner.Snapshot
	queue   []scanner.DiscoveredItem
}

// Clean removes items in order. One item's failure never stops the others;
// cancellation stops the pass between items and leaves the rest untouched.
func (c *Cleaner) Clean(ctx context.Context, items []scanner.DiscoveredItem, dryRun bool) *DeletionOutcome {
	p := &pass{outcome: newOutcome(dryRun), dryRun: dryRun}

	if c.opts.CheckRunning && c.deps.Owners != nil {
		snap, err := c.deps.Owners.Snapshot(ctx)
		if err != nil {
			// without a running set nothing can be proven safe
			log.Warn().Err(err).Msg("running application check failed")
			for _, item := range items {
				c.fail(p, item, oplog.KindTrash, &DeletionError{
					Path:     item.Path,
					Reason:   ReasonDeletionFailed,
					Original: fmt.Errorf("running application check failed: %w", err),
				})
			}
			return p.outcome
		}
		p.snap = snap
	}

	total := len(items)
	for i, item := range items {
		if ctx.Err() != nil {
			log.Debug().Int("remaining", total-i).Msg("clean cancelled")
			break
		}
		c.deps.Progress(item.Path, fraction(i, total))
		c.cleanItem(ctx, p, item)
	}

	if len(p.queue) > 0 && ctx.Err() == nil {
		c.deps.Progress(fmt.Sprintf("removing %d items with administrator access", len(p.queue)), fraction(total, total+1))
		c.elevated(ctx, p)
	}

	c.deps.Progress("done", 1)
	return p.outcome
}

func (c *Cleaner) cleanItem(ctx context.Context, p *pass, item scanner.DiscoveredItem) {
	if err := c.deps.Policy.Validate(item.Path); err != nil {
		c.fail(p, item, oplog.KindProtected, CategorizeError(item.Path, err))
		return
	}

	if p.snap != nil {
		if id, running := p.snap.OwnerRunning(item.Path); running {
			log.Debug().Str("path", item.Path).Str("identifier", id).Msg("skipping, owner is running")
			p.outcome.SkippedRunning = append(p.outcome.SkippedRunning, Skip{Path: item.Path, Identifier: id})
			c.deps.Metrics.RecordSkippedRunning()
			return
		}
	}

	admin := item.AdminRequired || (c.deps.Elevator != nil && c.perms.RequiresElevation(item.Path))
	kind := oplog.KindTrash
	if admin {
		kind = oplog.KindAdminDelete
	}

	if err := IsSafeToDelete(item.Path); err != nil {
		c.fail(p, item, kind, CategorizeError(item.Path, err))
		return
	}

	if p.dryRun {
		c.succeed(p, item, oplog.KindDryRun, metrics.MethodDryRun)
		return
	}

	if admin {
		p.queue = append(p.queue, item)
		return
	}

	if err := c.deps.Trash.MoveToTrash(ctx, item.Path); err != nil {
		c.fail(p, item, oplog.KindTrash, CategorizeError(item.Path, err))
		return
	}
	c.succeed(p, item, oplog.KindTrash, metrics.MethodTrash)
}

// elevated removes the queued items in batches. A batch succeeds or fails
// as a whole; a failed batch reports every member as access denied.
func (c *Cleaner) elevated(ctx context.Context, p *pass) {
	for start := 0; start < len(p.queue); start += c.opts.BatchSize {
		if ctx.Err() != nil {
			return
		}
		end := min(start+c.opts.BatchSize, len(p.queue))
		batch := p.queue[start:end]

		paths := make([]string, len(batch))
		for i, item := range batch {
			paths[i] = item.Path
		}

		err := fmt.Errorf("%w: no elevation method available", ErrElevationDenied)
		if c.deps.Elevator != nil {
			err = c.deps.Elevator.RemoveAll(ctx, paths)
		}

		for _, item := range batch {
			if err != nil {
				c.fail(p, item, oplog.KindAdminDelete, &DeletionError{
					Path:     item.Path,
					Reason:   ReasonAccessDenied,
					Original: err,
				})
				continue
			}
			c.succeed(p, item, oplog.KindAdminDelete, metrics.MethodAdmin)
		}
	}
}

// CleanCategories cleans the selected items of every category and merges the outcomes
func (c *Cleaner) CleanCategories(ctx context.Context, results []scanner.CategoryResult, dryRun bool) *DeletionOutcome {
	total := newOutcome(dryRun)
	for i := range results {
		if ctx.Err() != nil {
			break
		}
		selected := results[i].SelectedItems()
		if len(selected) == 0 {
			continue
		}
		log.Debug().Str("category", results[i].Category).Int("items", len(selected)).Msg("cleaning category")
		total.Merge(c.Clean(ctx, selected, dryRun))
	}
	return total
}

// EmptyTrash permanently removes everything in the trash
func (c *Cleaner) EmptyTrash(ctx context.Context, dryRun bool) (*DeletionOutcome, error) {
	entries, err := c.deps.Trash.List(ctx)
	if err != nil {
		return nil, err
	}

	p := &pass{outcome: newOutcome(dryRun), dryRun: dryRun}
	total := len(entries)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		c.deps.Progress(entry.Name, fraction(i, total))

		item := scanner.DiscoveredItem{Path: entry.Path, Name: entry.Name, Size: entry.Size}
		if err := security.CheckInjection(entry.Path); err != nil {
			c.fail(p, item, oplog.KindProtected, CategorizeError(entry.Path, err))
			continue
		}
		if dryRun {
			c.succeed(p, item, oplog.KindDryRun, metrics.MethodDryRun)
			continue
		}
		if err := c.deps.Trash.Purge(ctx, entry); err != nil {
			c.fail(p, item, oplog.KindEmptyTrash, CategorizeError(entry.Path, err))
			continue
		}
		c.succeed(p, item, oplog.KindEmptyTrash, metrics.MethodEmptyTrash)
	}

	c.deps.Progress("done", 1)
	return p.outcome, nil
}

func (c *Cleaner) succeed(p *pass, item scanner.DiscoveredItem, kind oplog.Kind, method string) {
	p.outcome.deleted(item.Size)
	c.deps.Metrics.RecordRemoved(method, item.Size)
	c.record(kind, item, true)
}

func (c *Cleaner) fail(p *pass, item scanner.DiscoveredItem, kind oplog.Kind, err *DeletionError) {
	p.outcome.fail(err)
	c.deps.Metrics.RecordError(err.Reason.Key())
	c.record(kind, item, false)
	log.Debug().Str("path", item.Path).Str("reason", err.Reason.Key()).Err(err.Original).Msg("not removed")
}

func (c *Cleaner) record(kind oplog.Kind, item scanner.DiscoveredItem, success bool) {
	if c.deps.Log == nil {
		return
	}
	if err := c.deps.Log.Record(kind, item.Path, item.Size, success); err != nil {
		log.Warn().Err(err).Str("path", item.Path).Msg("failed to write operation log")
	}
}

func fraction(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}
