package scanner

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fenilsonani/reclaim/internal/testutil"
)

// cancelAfter is a context whose Err starts reporting cancellation after n polls.
type cancelAfter struct {
	context.Context
	n     int64
	polls atomic.Int64
}

func (c *cancelAfter) Err() error {
	if c.polls.Add(1) > c.n {
		return context.Canceled
	}
	return nil
}

// =============================================================================
// Size
// =============================================================================

func TestSizeSumsRegularFiles(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("tree/a.bin", 100)
	f.CreateSizedFile("tree/sub/b.bin", 200)
	f.CreateSizedFile("tree/sub/deeper/c.bin", 300)

	e := NewEngine(Options{})
	size, err := e.Size(context.Background(), f.Path("tree"))
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 600 {
		t.Errorf("Size() = %d, want 600", size)
	}
}

func TestSizeHiddenEntries(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("tree/visible.bin", 10)
	f.CreateSizedFile("tree/.hidden.bin", 20)
	f.CreateSizedFile("tree/.git/objects/pack.bin", 40)

	tests := []struct {
		name          string
		includeHidden bool
		want          int64
	}{
		{"hidden excluded by default", false, 10},
		{"hidden included", true, 70},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Options{IncludeHidden: tt.includeHidden})
			size, err := e.Size(context.Background(), f.Path("tree"))
			if err != nil {
				t.Fatal(err)
			}
			if size != tt.want {
				t.Errorf("Size() = %d, want %d", size, tt.want)
			}
		})
	}
}

func TestSizeDoesNotFollowSymlinks(t *testing.T) {
	f := testutil.NewFixture(t)
	big := f.CreateSizedFile("outside/big.bin", 5000)
	f.CreateSizedFile("tree/own.bin", 7)
	f.CreateSymlink(big, "tree/link-to-big")
	f.CreateSymlink(f.Path("tree"), "tree/loop")

	e := NewEngine(Options{})
	size, err := e.Size(context.Background(), f.Path("tree"))
	if err != nil {
		t.Fatal(err)
	}
	if size != 7 {
		t.Errorf("Size() = %d, want 7", size)
	}

	linkSize, err := e.Size(context.Background(), f.Path("tree/link-to-big"))
	if err != nil {
		t.Fatal(err)
	}
	if linkSize != 0 {
		t.Errorf("symlink root should be 0, got %d", linkSize)
	}
}

func TestSizeSkipsUnreadable(t *testing.T) {
	testutil.SkipIfRoot(t)

	f := testutil.NewFixture(t)
	f.CreateSizedFile("tree/ok.bin", 64)
	f.CreateUnreadableDir("tree/locked", 1024)

	e := NewEngine(Options{})
	size, err := e.Size(context.Background(), f.Path("tree"))
	if err != nil {
		t.Fatalf("unreadable entries must not fail the scan: %v", err)
	}
	if size != 64 {
		t.Errorf("Size() = %d, want 64", size)
	}
}

func TestSizeMissingRoot(t *testing.T) {
	e := NewEngine(Options{})
	if _, err := e.Size(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestSizeSingleFile(t *testing.T) {
	f := testutil.NewFixture(t)
	path := f.CreateSizedFile("one.bin", 123)

	size, err := NewEngine(Options{}).Size(context.Background(), path)
	if err != nil || size != 123 {
		t.Errorf("Size() = %d, %v", size, err)
	}
}

// =============================================================================
// Cancellation
// =============================================================================

func populate(f *testutil.TestFixture, dirs, filesPerDir int) {
	for d := 0; d < dirs; d++ {
		for i := 0; i < filesPerDir; i++ {
			f.CreateSizedFile(filepath.Join("big", "d"+string(rune('a'+d)), "f"+string(rune('a'+i))+".bin"), 1)
		}
	}
}

func TestSizeCancelledMidTraversal(t *testing.T) {
	f := testutil.NewFixture(t)
	populate(f, 10, 20)

	e := NewEngine(Options{YieldEvery: 8})
	ctx := &cancelAfter{Context: context.Background(), n: 50}

	size, err := e.Size(ctx, f.Path("big"))
	if !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}
	if size != 0 {
		t.Errorf("cancelled scan must not return a partial size, got %d", size)
	}
}

func TestSizeCancelFlag(t *testing.T) {
	f := testutil.NewFixture(t)
	populate(f, 2, 2)

	e := NewEngine(Options{})
	e.Cancel()
	if _, err := e.Size(context.Background(), f.Path("big")); !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}

	e.Reset()
	size, err := e.Size(context.Background(), f.Path("big"))
	if err != nil || size != 4 {
		t.Errorf("after Reset: Size() = %d, %v", size, err)
	}
}

func TestSizeContextCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	populate(f, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(Options{}).Size(ctx, f.Path("big"))
	if !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}
}

// =============================================================================
// Tree
// =============================================================================

func buildSampleTree(f *testutil.TestFixture) {
	f.CreateSizedFile("root/small.bin", 10)
	f.CreateSizedFile("root/large/a.bin", 500)
	f.CreateSizedFile("root/large/inner/b.bin", 500)
	f.CreateSizedFile("root/medium/c.bin", 200)
}

func TestBuildTreeSortsDescending(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	e := NewEngine(Options{})
	tree, err := e.BuildTree(context.Background(), f.Path("root"), 1)
	if err != nil {
		t.Fatal(err)
	}

	root := tree.Root()
	if root.Size != 1210 {
		t.Errorf("root size = %d, want 1210", root.Size)
	}
	if root.State != ChildrenLoaded {
		t.Errorf("root state = %s", root.State)
	}

	children := tree.Children(root.ID)
	want := []struct {
		name string
		size int64
	}{
		{"large", 1000},
		{"medium", 200},
		{"small.bin", 10},
	}
	if len(children) != len(want) {
		t.Fatalf("got %d children, want %d", len(children), len(want))
	}
	for i, w := range want {
		if children[i].Name != w.name || children[i].Size != w.size {
			t.Errorf("child %d = %s (%d), want %s (%d)", i, children[i].Name, children[i].Size, w.name, w.size)
		}
	}

	// Directories at the depth limit are size-only
	if children[0].State != ChildrenUnknown || len(children[0].Children) != 0 {
		t.Errorf("expected collapsed node for %s", children[0].Name)
	}
}

func TestBuildTreeDeeper(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	tree, err := NewEngine(Options{}).BuildTree(context.Background(), f.Path("root"), 3)
	if err != nil {
		t.Fatal(err)
	}
	large := tree.Children(0)[0]
	if large.State != ChildrenLoaded {
		t.Fatalf("large should be loaded at depth 3, got %s", large.State)
	}
	inner := tree.Children(large.ID)
	if len(inner) != 2 || inner[0].Size != 500 {
		t.Errorf("unexpected children of large: %+v", inner)
	}
}

func TestBuildTreeDepthZero(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	tree, err := NewEngine(Options{}).BuildTree(context.Background(), f.Path("root"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Nodes) != 1 || tree.Root().Size != 1210 || tree.Root().State != ChildrenUnknown {
		t.Errorf("expected single collapsed root, got %+v", tree.Root())
	}
}

func TestExpand(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	e := NewEngine(Options{})
	tree, err := e.BuildTree(context.Background(), f.Path("root"), 1)
	if err != nil {
		t.Fatal(err)
	}
	large := tree.Children(0)[0]
	id := large.ID

	if err := e.Expand(context.Background(), tree, id); err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	node, _ := tree.Node(id)
	if node.State != ChildrenLoaded {
		t.Errorf("state = %s, want loaded", node.State)
	}
	kids := tree.Children(id)
	if len(kids) != 2 {
		t.Fatalf("got %d children", len(kids))
	}
	if kids[0].Size < kids[1].Size {
		t.Error("children not sorted descending")
	}
	if node.Size != 1000 {
		t.Errorf("expanding must not change the node size, got %d", node.Size)
	}

	// Second expand is a no-op
	before := len(tree.Nodes)
	if err := e.Expand(context.Background(), tree, id); err != nil {
		t.Fatal(err)
	}
	if len(tree.Nodes) != before {
		t.Error("re-expanding a loaded node added nodes")
	}
}

func TestExpandCancelledLeavesTreeUnchanged(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	e := NewEngine(Options{})
	tree, err := e.BuildTree(context.Background(), f.Path("root"), 1)
	if err != nil {
		t.Fatal(err)
	}
	id := tree.Children(0)[0].ID
	before := len(tree.Nodes)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Expand(ctx, tree, id); !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}

	node, _ := tree.Node(id)
	if node.State != ChildrenUnknown || len(tree.Nodes) != before {
		t.Errorf("tree changed after failed expand: state=%s nodes=%d", node.State, len(tree.Nodes))
	}
}

func TestExpandUnknownNode(t *testing.T) {
	f := testutil.NewFixture(t)
	buildSampleTree(f)

	e := NewEngine(Options{})
	tree, _ := e.BuildTree(context.Background(), f.Path("root"), 1)
	if err := e.Expand(context.Background(), tree, 999); !errors.Is(err, ErrNoSuchNode) {
		t.Errorf("expected ErrNoSuchNode, got %v", err)
	}
}

// =============================================================================
// Scanner
// =============================================================================

func TestScanTargets(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateSizedFile("home/Library/Caches/com.example.one/blob", 300)
	f.CreateSizedFile("home/Library/Caches/com.example.two/blob", 100)
	f.CreateDir("home/Library/Caches/empty")
	f.CreateSizedFile("home/Library/Logs/app.log", 50)

	targets := []ScanTarget{
		{Path: "~/Library/Caches", Category: "user_caches", ExpandOneLevel: true},
		{Path: "~/Library/Logs", Category: "logs"},
		{Path: "~/does-not-exist", Category: "ghost"},
		{Path: "/Library/Caches-admin-" + t.Name(), Category: "system", AdminRequired: true},
	}

	var mu sync.Mutex
	var fractions []float64
	report := func(msg string, fraction float64) {
		mu.Lock()
		defer mu.Unlock()
		fractions = append(fractions, fraction)
	}

	s := New(NewEngine(Options{}), f.HomeDir, 2)
	session, err := s.Scan(context.Background(), targets, report)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if session.ID == "" {
		t.Error("expected a session id")
	}
	if len(session.Categories) != 2 {
		t.Fatalf("got %d categories, want 2", len(session.Categories))
	}
	if session.Categories[0].Category != "user_caches" || session.Categories[1].Category != "logs" {
		t.Errorf("categories out of catalog order: %s, %s", session.Categories[0].Category, session.Categories[1].Category)
	}

	caches := session.Categories[0]
	if len(caches.Items) != 2 {
		t.Fatalf("expected empty child to be dropped, got %d items", len(caches.Items))
	}
	if caches.TotalSize != 400 {
		t.Errorf("cache total = %d, want 400", caches.TotalSize)
	}

	var sum int64
	for _, item := range session.Items() {
		sum += item.Size
	}
	if sum != session.TotalSize() {
		t.Errorf("item sum %d != total %d", sum, session.TotalSize())
	}

	if len(fractions) == 0 || fractions[len(fractions)-1] != 1 {
		t.Errorf("expected final progress of 1, got %v", fractions)
	}
}

func TestScanCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	populate(f, 4, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(NewEngine(Options{}), f.HomeDir, 1)
	session, err := s.Scan(ctx, []ScanTarget{{Path: f.Path("big"), Category: "big"}}, nil)
	if !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}
	if session != nil {
		t.Error("cancelled scan must not return a session")
	}
}

func TestScanCancelledWithMissingRoots(t *testing.T) {
	f := testutil.NewFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(NewEngine(Options{}), f.HomeDir, 2)
	session, err := s.Scan(ctx, []ScanTarget{
		{Path: "~/missing-one", Category: "a"},
		{Path: "~/missing-two", Category: "b"},
	}, nil)
	if !errors.Is(err, ErrScanCancelled) {
		t.Fatalf("expected ErrScanCancelled, got %v", err)
	}
	if session != nil {
		t.Error("cancelled scan must not return a session")
	}
}

func TestSessionSelection(t *testing.T) {
	session := NewSession([]DiscoveredItem{
		{Path: "/a", Size: 1, Category: "x"},
		{Path: "/b", Size: 2, Category: "y"},
		{Path: "/c", Size: 3, Category: "x"},
	})

	if !session.SetSelected("/b", true) {
		t.Fatal("SetSelected returned false")
	}
	if session.SetSelected("/missing", true) {
		t.Error("SetSelected on missing path returned true")
	}
	if got := session.SelectedItems(); len(got) != 1 || got[0].Path != "/b" {
		t.Errorf("SelectedItems() = %+v", got)
	}

	session.SelectCategory("x", true)
	if got := len(session.SelectedItems()); got != 3 {
		t.Errorf("expected 3 selected, got %d", got)
	}

	session.SelectAll(false)
	if got := len(session.SelectedItems()); got != 0 {
		t.Errorf("expected 0 selected, got %d", got)
	}

	x, ok := session.Category("x")
	if !ok || len(x.Items) != 2 || x.TotalSize != 4 {
		t.Errorf("Category(x) = %+v", x)
	}
}

func TestGroupByCategory(t *testing.T) {
	now := time.Now()
	results := GroupByCategory([]DiscoveredItem{
		{Path: "/1", Size: 5, Category: "b", ModTime: now},
		{Path: "/2", Size: 7, Category: "a", ModTime: now},
		{Path: "/3", Size: 1, Category: "b", ModTime: now},
	})

	if len(results) != 2 || results[0].Category != "b" || results[1].Category != "a" {
		t.Fatalf("unexpected grouping %+v", results)
	}
	if results[0].TotalSize != 6 || results[0].Items[1].Path != "/3" {
		t.Errorf("unexpected category b %+v", results[0])
	}
}
