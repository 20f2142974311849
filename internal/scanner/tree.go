package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ChildState tracks whether a node's children have been listed
type ChildState int

const (
	// ChildrenUnknown is a size-only node that can be expanded.
	ChildrenUnknown ChildState = iota
	ChildrenLoading
	ChildrenLoaded
)

func (s ChildState) String() string {
	switch s {
	case ChildrenUnknown:
		return "unknown"
	case ChildrenLoading:
		return "loading"
	case ChildrenLoaded:
		return "loaded"
	default:
		return "invalid"
	}
}

var (
	ErrNoSuchNode       = errors.New("no such node")
	ErrExpandInProgress = errors.New("expansion already in progress")
)

// Node is one entry of a Tree. Children holds node ids, largest first.
type Node struct {
	ID       int
	Parent   int
	Name     string
	Path     string
	Size     int64
	IsDir    bool
	ModTime  time.Time
	State    ChildState
	Children []int
}

// Tree is an arena of nodes addressed by stable ids. Node 0 is the root.
type Tree struct {
	Nodes []Node
}

// Root returns the root node
func (t *Tree) Root() *Node {
	return &t.Nodes[0]
}

// Node returns the node with the given id
func (t *Tree) Node(id int) (*Node, bool) {
	if id < 0 || id >= len(t.Nodes) {
		return nil, false
	}
	return &t.Nodes[id], true
}

// Children returns the children of id, largest first
func (t *Tree) Children(id int) []*Node {
	n, ok := t.Node(id)
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, &t.Nodes[c])
	}
	return out
}

func (t *Tree) add(n Node) int {
	n.ID = len(t.Nodes)
	t.Nodes = append(t.Nodes, n)
	return n.ID
}

// BuildTree lists root down to maxDepth levels. Directories at the depth limit
// carry their full size but no children (ChildrenUnknown) and can be expanded
// later with Expand.
func (e *Engine) BuildTree(ctx context.Context, root string, maxDepth int) (*Tree, error) {
	if err := e.checkCancel(ctx); err != nil {
		return nil, err
	}

	root = filepath.Clean(root)
	info, err := os.Lstat(root)
	if err != nil {
		return nil, err
	}

	t := &Tree{}
	id := t.add(Node{
		Parent:  -1,
		Name:    info.Name(),
		Path:    root,
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	})

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		t.Nodes[id].State = ChildrenLoaded
		return t, nil
	case !info.IsDir():
		t.Nodes[id].Size = info.Size()
		t.Nodes[id].State = ChildrenLoaded
		return t, nil
	}

	seen := 0
	if maxDepth <= 0 {
		size, err := e.walk(ctx, root, &seen)
		if err != nil {
			return nil, err
		}
		t.Nodes[id].Size = size
		return t, nil
	}

	size, err := e.list(ctx, t, id, 1, maxDepth, &seen)
	if err != nil {
		return nil, err
	}
	t.Nodes[id].Size = size
	return t, nil
}

// Expand lists one more level below a size-only node. Expanding a loaded node
// is a no-op. On failure the tree is left as it was.
func (e *Engine) Expand(ctx context.Context, t *Tree, id int) error {
	n, ok := t.Node(id)
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNoSuchNode)
	}
	switch {
	case !n.IsDir || n.State == ChildrenLoaded:
		return nil
	case n.State == ChildrenLoading:
		return fmt.Errorf("node %d: %w", id, ErrExpandInProgress)
	}

	mark := len(t.Nodes)
	t.Nodes[id].State = ChildrenLoading

	seen := 0
	if _, err := e.list(ctx, t, id, 1, 1, &seen); err != nil {
		t.Nodes = t.Nodes[:mark]
		t.Nodes[id].Children = nil
		t.Nodes[id].State = ChildrenUnknown
		return err
	}
	return nil
}

// list adds the children of id at the given depth and returns their total size.
func (e *Engine) list(ctx context.Context, t *Tree, id, depth, maxDepth int, seen *int) (int64, error) {
	if err := e.checkCancel(ctx); err != nil {
		return 0, err
	}

	dir := t.Nodes[id].Path
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Nodes[id].State = ChildrenLoaded
		return 0, nil
	}

	var children []int
	var total int64
	for _, de := range entries {
		if err := e.visit(ctx, seen); err != nil {
			return 0, err
		}
		if e.skip(de) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}

		child := Node{
			Parent:  id,
			Name:    de.Name(),
			Path:    filepath.Join(dir, de.Name()),
			IsDir:   de.IsDir(),
			ModTime: info.ModTime(),
		}

		switch {
		case de.IsDir() && depth < maxDepth:
			cid := t.add(child)
			size, err := e.list(ctx, t, cid, depth+1, maxDepth, seen)
			if err != nil {
				return 0, err
			}
			t.Nodes[cid].Size = size
			children = append(children, cid)
			total += size
		case de.IsDir():
			size, err := e.walk(ctx, child.Path, seen)
			if err != nil {
				return 0, err
			}
			child.Size = size
			child.State = ChildrenUnknown
			children = append(children, t.add(child))
			total += size
		case de.Type().IsRegular():
			child.Size = info.Size()
			child.State = ChildrenLoaded
			children = append(children, t.add(child))
			total += child.Size
		}
	}

	sort.SliceStable(children, func(i, j int) bool {
		a, b := &t.Nodes[children[i]], &t.Nodes[children[j]]
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		return a.Name < b.Name
	})

	t.Nodes[id].Children = children
	t.Nodes[id].State = ChildrenLoaded
	return total, nil
}
