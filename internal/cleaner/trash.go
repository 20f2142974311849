package cleaner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/scanner"
)

// TrashEntry is one item sitting in the trash
type TrashEntry struct {
	Name string
	Path string
	Size int64
}

// Trash is a recoverable removal destination
type Trash interface {
	MoveToTrash(ctx context.Context, path string) error
	List(ctx context.Context) ([]TrashEntry, error)
	Purge(ctx context.Context, entry TrashEntry) error
}

var _ Trash = (*FileTrash)(nil)

// FileTrash is the per-user trash directory. The flat layout is macOS'
// ~/.Trash; the XDG layout keeps files/ and info/ side by side.
type FileTrash struct {
	Dir    string
	Layout platform.TrashLayout

	engine *scanner.Engine
	now    func() time.Time
}

// NewFileTrash creates a trash over dir. engine sizes entries when listing.
func NewFileTrash(dir string, layout platform.TrashLayout, engine *scanner.Engine) *FileTrash {
	if engine == nil {
		engine = scanner.NewEngine(scanner.Options{IncludeHidden: true})
	}
	return &FileTrash{
		Dir:    dir,
		Layout: layout,
		engine: engine,
		now:    time.Now,
	}
}

func (t *FileTrash) filesDir() string {
	if t.Layout == platform.TrashXDG {
		return filepath.Join(t.Dir, "files")
	}
	return t.Dir
}

func (t *FileTrash) infoDir() string {
	return filepath.Join(t.Dir, "info")
}

// MoveToTrash implements Trash. Name clashes get a numeric suffix.
func (t *FileTrash) MoveToTrash(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Lstat(path); err != nil {
		return err
	}

	if err := os.MkdirAll(t.filesDir(), 0700); err != nil {
		return fmt.Errorf("failed to create trash: %w", err)
	}

	if t.Layout == platform.TrashXDG {
		return t.moveXDG(path)
	}

	for n := 1; ; n++ {
		dest := filepath.Join(t.Dir, candidateName(filepath.Base(path), n))
		if _, err := os.Lstat(dest); err == nil {
			continue
		}
		return moveInto(path, dest)
	}
}

func (t *FileTrash) moveXDG(path string) error {
	if err := os.MkdirAll(t.infoDir(), 0700); err != nil {
		return fmt.Errorf("failed to create trash info: %w", err)
	}

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: path}).EscapedPath(),
		t.now().Format("2006-01-02T15:04:05"))

	for n := 1; ; n++ {
		name := candidateName(filepath.Base(path), n)
		infoPath := filepath.Join(t.infoDir(), name+".trashinfo")

		// the info file claims the name
		f, err := os.OpenFile(infoPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to write trash info: %w", err)
		}
		_, werr := f.WriteString(info)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			os.Remove(infoPath)
			return fmt.Errorf("failed to write trash info: %w", errors.Join(werr, cerr))
		}

		dest := filepath.Join(t.filesDir(), name)
		if _, err := os.Lstat(dest); err == nil {
			os.Remove(infoPath)
			continue
		}
		if err := moveInto(path, dest); err != nil {
			os.Remove(infoPath)
			return err
		}
		return nil
	}
}

func moveInto(path, dest string) error {
	if err := os.Rename(path, dest); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) {
			return fmt.Errorf("failed to move %s to trash: %w", path, linkErr.Err)
		}
		return fmt.Errorf("failed to move %s to trash: %w", path, err)
	}
	return nil
}

// candidateName returns base for n == 1 and "base N.ext" after that
func candidateName(base string, n int) string {
	if n == 1 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem, ext = base, ""
	}
	return stem + " " + strconv.Itoa(n) + ext
}

// List implements Trash
func (t *FileTrash) List(ctx context.Context) ([]TrashEntry, error) {
	entries, err := os.ReadDir(t.filesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trash: %w", err)
	}

	out := make([]TrashEntry, 0, len(entries))
	for _, e := range entries {
		if t.Layout == platform.TrashFlat && e.Name() == ".DS_Store" {
			continue
		}
		path := filepath.Join(t.filesDir(), e.Name())
		size, err := t.engine.Size(ctx, path)
		if err != nil {
			if errors.Is(err, scanner.ErrScanCancelled) {
				return nil, err
			}
			size = 0
		}
		out = append(out, TrashEntry{Name: e.Name(), Path: path, Size: size})
	}
	return out, nil
}

// Purge implements Trash. This is a permanent delete.
func (t *FileTrash) Purge(ctx context.Context, entry TrashEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filepath.Dir(entry.Path) != t.filesDir() {
		return fmt.Errorf("%s is not in the trash", entry.Path)
	}
	if err := os.RemoveAll(entry.Path); err != nil {
		return err
	}
	if t.Layout == platform.TrashXDG {
		if err := os.Remove(filepath.Join(t.infoDir(), entry.Name+".trashinfo")); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
