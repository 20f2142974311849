package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
)

// ErrScanCancelled is returned by every traversal that observed a cancellation.
var ErrScanCancelled = errors.New("scan cancelled")

// DefaultYieldEvery is how many entries are processed between scheduler yields.
const DefaultYieldEvery = 512

// Options controls traversal
type Options struct {
	IncludeHidden bool
	YieldEvery    int
}

// Engine computes directory sizes and trees. Cancellation is cooperative:
// Cancel sets a flag that, like ctx.Done, is polled at every entry.
type Engine struct {
	opts      Options
	cancelled atomic.Bool
	entries   atomic.Int64
}

// NewEngine creates a traversal engine
func NewEngine(opts Options) *Engine {
	if opts.YieldEvery <= 0 {
		opts.YieldEvery = DefaultYieldEvery
	}
	return &Engine{opts: opts}
}

// Cancel makes every running and future traversal return ErrScanCancelled
// until Reset is called.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// Reset clears a previous Cancel
func (e *Engine) Reset() {
	e.cancelled.Store(false)
}

// Entries returns the number of directory entries visited since creation
func (e *Engine) Entries() int64 {
	return e.entries.Load()
}

func (e *Engine) checkCancel(ctx context.Context) error {
	if e.cancelled.Load() {
		return ErrScanCancelled
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrScanCancelled, err)
	}
	return nil
}

// visit is called once per directory entry
func (e *Engine) visit(ctx context.Context, seen *int) error {
	*seen++
	e.entries.Add(1)
	if *seen%e.opts.YieldEvery == 0 {
		runtime.Gosched()
	}
	return e.checkCancel(ctx)
}

func (e *Engine) skip(de fs.DirEntry) bool {
	if de.Type()&fs.ModeSymlink != 0 {
		return true
	}
	return !e.opts.IncludeHidden && isHidden(de.Name())
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Size returns the total size of all regular files beneath root. Symlinks are
// not followed; unreadable directories count as empty.
func (e *Engine) Size(ctx context.Context, root string) (int64, error) {
	if err := e.checkCancel(ctx); err != nil {
		return 0, err
	}

	info, err := os.Lstat(root)
	if err != nil {
		return 0, err
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		return 0, nil
	case info.Mode().IsRegular():
		return info.Size(), nil
	case !info.IsDir():
		return 0, nil
	}

	seen := 0
	return e.walk(ctx, root, &seen)
}

func (e *Engine) walk(ctx context.Context, dir string, seen *int) (int64, error) {
	if err := e.checkCancel(ctx); err != nil {
		return 0, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// Permission denied or vanished mid-scan
		return 0, nil
	}

	var total int64
	for _, de := range entries {
		if err := e.visit(ctx, seen); err != nil {
			return 0, err
		}
		if e.skip(de) {
			continue
		}

		if de.IsDir() {
			sub, err := e.walk(ctx, filepath.Join(dir, de.Name()), seen)
			if err != nil {
				return 0, err
			}
			total += sub
			continue
		}

		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}

	return total, nil
}
