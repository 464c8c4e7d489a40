package domain

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"regotest.dev/pkg/regotest/internal/adapter"
	m "regotest.dev/pkg/regotest/internal/model"
)

// Discovery keeps the test tree in sync with policy test files on disk.
type Discovery interface {
	// Refresh finds every file under the root matching patterns and rescans
	// it. It returns the file nodes in discovery order.
	Refresh(ctx context.Context, patterns []string) ([]*m.Node, error)
	// RefreshFile registers path and replaces its test cases from a fresh
	// scan of its content.
	RefreshFile(ctx context.Context, path m.Path) (*m.Node, error)
	// RegisterFile returns the file node for path, creating it if needed.
	RegisterFile(path m.Path) (*m.Node, error)
	// Apply updates the tree for a watcher event and reports whether the
	// event should be dispatched as a file change.
	Apply(ctx context.Context, event m.FileEvent) (bool, error)
	// Matches reports whether path is a test file under the root.
	Matches(path m.Path, patterns []string) bool
	// Tree returns the tree being maintained.
	Tree() *m.Tree
}

type discovery struct {
	tree      *m.Tree
	fsAdapter adapter.SourceFSAdapter
	root      m.Path
}

// NewDiscovery constructs a Discovery that maintains tree for test files
// below root.
func NewDiscovery(tree *m.Tree, fsAdapter adapter.SourceFSAdapter, root m.Path) Discovery {
	return &discovery{
		tree:      tree,
		fsAdapter: fsAdapter,
		root:      root,
	}
}

func (d *discovery) Tree() *m.Tree {
	return d.tree
}

func (d *discovery) Refresh(ctx context.Context, patterns []string) ([]*m.Node, error) {
	paths, err := d.fsAdapter.FindFiles(ctx, d.root, patterns)
	if err != nil {
		slog.Error("Failed to find test files", "root", d.root, "error", err)
		return nil, fmt.Errorf("find test files: %w", err)
	}

	slog.Debug("Found test files", "root", d.root, "count", len(paths))

	nodes := make([]*m.Node, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			node, err := d.RefreshFile(gctx, path)
			if err != nil {
				return err
			}

			nodes[i] = node

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return nodes, nil
}

func (d *discovery) RefreshFile(ctx context.Context, path m.Path) (*m.Node, error) {
	abs, err := d.fsAdapter.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	unlock := d.tree.LockSubtree(string(abs))
	defer unlock()

	file, err := d.register(abs)
	if err != nil {
		return nil, err
	}

	content, err := d.fsAdapter.ReadFile(ctx, file.URI)
	if err != nil {
		slog.Error("Failed to read test file", "path", file.URI, "error", err)
		return nil, fmt.Errorf("read %s: %w", file.URI, err)
	}

	decls := ScanDeclarations(string(content))
	children := make([]*m.Node, 0, len(decls))

	for _, decl := range decls {
		r := decl.Range

		children = append(children, &m.Node{
			ID:    decl.TestID(),
			Label: decl.Name,
			Kind:  m.KindTestCase,
			URI:   file.URI,
			Range: &r,
		})
	}

	if err := d.tree.ReplaceChildren(file.ID, children); err != nil {
		return nil, fmt.Errorf("replace tests of %s: %w", file.ID, err)
	}

	slog.Debug("Scanned test file", "path", file.URI, "tests", len(children))

	return file, nil
}

func (d *discovery) RegisterFile(path m.Path) (*m.Node, error) {
	abs, err := d.fsAdapter.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	unlock := d.tree.LockSubtree(string(abs))
	defer unlock()

	return d.register(abs)
}

// register must be called with the file's subtree lock held.
func (d *discovery) register(abs m.Path) (*m.Node, error) {
	id := string(abs)

	if existing, ok := d.tree.Get(id); ok {
		return existing, nil
	}

	node := &m.Node{
		ID:    id,
		Label: filepath.Base(id),
		Kind:  m.KindFile,
		URI:   abs,
	}

	if err := d.tree.Add(node); err != nil {
		return nil, fmt.Errorf("register %s: %w", id, err)
	}

	return node, nil
}

func (d *discovery) Apply(ctx context.Context, event m.FileEvent) (bool, error) {
	switch event.Op {
	case m.FileCreated, m.FileChanged:
		if _, err := d.RefreshFile(ctx, event.Path); err != nil {
			return false, err
		}

		return true, nil
	case m.FileDeleted:
		abs, err := d.fsAdapter.Abs(event.Path)
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", event.Path, err)
		}

		unlock := d.tree.LockSubtree(string(abs))
		defer unlock()

		if d.tree.Delete(string(abs)) {
			slog.Debug("Removed test file", "path", abs)
		}

		return false, nil
	default:
		return false, fmt.Errorf("unknown file event %v", event.Op)
	}
}

func (d *discovery) Matches(path m.Path, patterns []string) bool {
	abs, err := d.fsAdapter.Abs(path)
	if err != nil {
		return false
	}

	root, err := d.fsAdapter.Abs(d.root)
	if err != nil {
		return false
	}

	rel, err := filepath.Rel(string(root), string(abs))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	matched, err := adapter.MatchAny(rel, patterns)
	if err != nil {
		slog.Warn("Invalid test file pattern", "patterns", patterns, "error", err)
		return false
	}

	return matched
}
