package cleaner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/reclaim/internal/platform"
	"github.com/fenilsonani/reclaim/internal/testutil"
)

func TestCandidateName(t *testing.T) {
	tests := []struct {
		base string
		n    int
		want string
	}{
		{"report.pdf", 1, "report.pdf"},
		{"report.pdf", 2, "report 2.pdf"},
		{"cache", 3, "cache 3"},
		{".hidden", 2, ".hidden 2"},
		{"archive.tar.gz", 2, "archive.tar 2.gz"},
	}
	for _, tt := range tests {
		if got := candidateName(tt.base, tt.n); got != tt.want {
			t.Errorf("candidateName(%q, %d) = %q, want %q", tt.base, tt.n, got, tt.want)
		}
	}
}

func TestFlatTrashNameClash(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewFileTrash(f.TrashDir, platform.TrashFlat, nil)
	ctx := context.Background()

	first := f.CreateFile("home/one/notes.txt", []byte("one"))
	second := f.CreateFile("home/two/notes.txt", []byte("two"))

	for _, p := range []string{first, second} {
		if err := trash.MoveToTrash(ctx, p); err != nil {
			t.Fatalf("MoveToTrash(%s) error = %v", p, err)
		}
		f.AssertFileNotExists(p)
	}

	data, err := os.ReadFile(filepath.Join(f.TrashDir, "notes 2.txt"))
	if err != nil || string(data) != "two" {
		t.Errorf("second item should land as 'notes 2.txt', got %q (%v)", data, err)
	}

	// .DS_Store is not an entry
	f.CreateFile("home/.Trash/.DS_Store", []byte("x"))
	entries, err := trash.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("List() = %v, want 2 entries", entries)
	}
}

func TestXDGTrash(t *testing.T) {
	f := testutil.NewFixture(t)
	dir := f.Path("home/.local/share/Trash")
	trash := NewFileTrash(dir, platform.TrashXDG, nil)
	trash.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.Local) }
	ctx := context.Background()

	src := f.CreateSizedFile("home/.cache/my app/blob.bin", 64)
	if err := trash.MoveToTrash(ctx, src); err != nil {
		t.Fatalf("MoveToTrash() error = %v", err)
	}
	f.AssertFileNotExists(src)
	f.AssertFileExists(filepath.Join(dir, "files", "blob.bin"))

	info, err := os.ReadFile(filepath.Join(dir, "info", "blob.bin.trashinfo"))
	if err != nil {
		t.Fatalf("trashinfo missing: %v", err)
	}
	for _, want := range []string{"[Trash Info]", "Path=" + strings.ReplaceAll(src, " ", "%20"), "DeletionDate=2026-03-01T12:30:00"} {
		if !strings.Contains(string(info), want) {
			t.Errorf("trashinfo should contain %q, got:\n%s", want, info)
		}
	}

	// a second item with the same name gets its own info file
	again := f.CreateSizedFile("home/.cache/other/blob.bin", 8)
	if err := trash.MoveToTrash(ctx, again); err != nil {
		t.Fatalf("MoveToTrash() error = %v", err)
	}
	f.AssertFileExists(filepath.Join(dir, "info", "blob 2.bin.trashinfo"))

	entries, err := trash.List(ctx)
	if err != nil || len(entries) != 2 {
		t.Fatalf("List() = %v, %v", entries, err)
	}

	for _, e := range entries {
		if err := trash.Purge(ctx, e); err != nil {
			t.Errorf("Purge(%s) error = %v", e.Name, err)
		}
		f.AssertFileNotExists(e.Path)
		f.AssertFileNotExists(filepath.Join(dir, "info", e.Name+".trashinfo"))
	}
}

func TestTrashListSizes(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewFileTrash(f.TrashDir, platform.TrashFlat, nil)

	f.CreateSizedFile("home/.Trash/dir/a", 100)
	f.CreateSizedFile("home/.Trash/dir/b", 50)

	entries, err := trash.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "dir" || entries[0].Size != 150 {
		t.Errorf("List() = %+v, want one 150 byte entry", entries)
	}
}

func TestTrashMissingDir(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewFileTrash(f.Path("nowhere"), platform.TrashXDG, nil)

	entries, err := trash.List(context.Background())
	if err != nil || entries != nil {
		t.Errorf("List() = %v, %v; want nothing for a missing trash", entries, err)
	}
}

func TestTrashPurgeRejectsOutsidePaths(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewFileTrash(f.TrashDir, platform.TrashFlat, nil)
	outside := f.CreateFile("home/keep.txt", []byte("keep"))

	if err := trash.Purge(context.Background(), TrashEntry{Name: "keep.txt", Path: outside}); err == nil {
		t.Error("Purge() should refuse a path outside the trash")
	}
	f.AssertFileExists(outside)
}

func TestMoveToTrashMissing(t *testing.T) {
	f := testutil.NewFixture(t)
	trash := NewFileTrash(f.TrashDir, platform.TrashFlat, nil)

	if err := trash.MoveToTrash(context.Background(), f.Path("home/gone")); !os.IsNotExist(err) {
		t.Errorf("MoveToTrash(missing) = %v, want not-exist", err)
	}
}
