package model

import (
	"fmt"
	"log/slog"
	"sync"
)

// Tree owns every node of the test hierarchy, indexed by id. Structural
// reads and writes are guarded by a single RWMutex; callers that perform a
// read-scan-replace cycle on one subtree serialize it with LockSubtree so
// unrelated files can be refreshed in parallel.
type Tree struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	children map[string][]string
	roots    []string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Get returns the node with the given id.
func (t *Tree) Get(id string) (*Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	node, ok := t.nodes[id]

	return node, ok
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.nodes)
}

// Add inserts node at the root, or under node.Parent when set. A node with
// the same id is replaced together with its subtree.
func (t *Tree) Add(node *Node) error {
	if node == nil || node.ID == "" {
		return fmt.Errorf("node must have an id")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if node.Parent != "" {
		if _, ok := t.nodes[node.Parent]; !ok {
			return fmt.Errorf("parent %q not found", node.Parent)
		}
	}

	if _, exists := t.nodes[node.ID]; exists {
		t.removeLocked(node.ID)
	}

	t.nodes[node.ID] = node

	if node.Parent == "" {
		t.roots = append(t.roots, node.ID)
	} else {
		t.children[node.Parent] = append(t.children[node.Parent], node.ID)
	}

	return nil
}

// ReplaceChildren discards every child of parentID and installs children in
// their place. Each child's Parent is set to parentID. When ids repeat, the
// first occurrence wins. A child whose id already lives under another parent
// is moved here.
func (t *Tree) ReplaceChildren(parentID string, children []*Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[parentID]; !ok {
		return fmt.Errorf("parent %q not found", parentID)
	}

	for _, childID := range t.children[parentID] {
		t.dropSubtreeLocked(childID)
	}

	ids := make([]string, 0, len(children))
	seen := make(map[string]struct{}, len(children))

	for _, child := range children {
		if child == nil || child.ID == "" {
			continue
		}

		if _, dup := seen[child.ID]; dup {
			continue
		}

		seen[child.ID] = struct{}{}

		if existing, exists := t.nodes[child.ID]; exists {
			if existing.Parent != parentID {
				slog.Warn("Test id declared in more than one file, keeping the latest",
					"testID", child.ID, "previous", existing.Parent, "current", parentID)
			}

			t.removeLocked(child.ID)
		}

		child.Parent = parentID
		t.nodes[child.ID] = child
		ids = append(ids, child.ID)
	}

	t.children[parentID] = ids

	return nil
}

// Delete removes the node and its subtree. It reports whether the node existed.
func (t *Tree) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.nodes[id]; !ok {
		return false
	}

	t.removeLocked(id)

	return true
}

// Roots returns the top-level nodes in insertion order.
func (t *Tree) Roots() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.collectLocked(t.roots)
}

// Children returns the direct children of id in insertion order.
func (t *Tree) Children(id string) []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.collectLocked(t.children[id])
}

// Candidates flattens the tree depth-first, listing each node's children
// before the node itself.
func (t *Tree) Candidates() []*Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Node, 0, len(t.nodes))
	for _, id := range t.roots {
		out = t.appendCandidatesLocked(out, id)
	}

	return out
}

// LockSubtree serializes mutations of the subtree rooted at id. The returned
// function releases the lock.
func (t *Tree) LockSubtree(id string) func() {
	t.locksMu.Lock()

	lock, ok := t.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[id] = lock
	}

	t.locksMu.Unlock()

	lock.Lock()

	return lock.Unlock
}

func (t *Tree) appendCandidatesLocked(out []*Node, id string) []*Node {
	node, ok := t.nodes[id]
	if !ok {
		return out
	}

	for _, childID := range t.children[id] {
		out = t.appendCandidatesLocked(out, childID)
	}

	return append(out, node)
}

func (t *Tree) collectLocked(ids []string) []*Node {
	out := make([]*Node, 0, len(ids))

	for _, id := range ids {
		if node, ok := t.nodes[id]; ok {
			out = append(out, node)
		}
	}

	return out
}

// removeLocked unlinks id from its parent (or the roots) and drops its subtree.
func (t *Tree) removeLocked(id string) {
	node := t.nodes[id]
	if node == nil {
		return
	}

	if node.Parent == "" {
		t.roots = without(t.roots, id)
	} else {
		t.children[node.Parent] = without(t.children[node.Parent], id)
	}

	t.dropSubtreeLocked(id)
}

func (t *Tree) dropSubtreeLocked(id string) {
	for _, childID := range t.children[id] {
		t.dropSubtreeLocked(childID)
	}

	delete(t.children, id)
	delete(t.nodes, id)
}

func without(ids []string, id string) []string {
	out := ids[:0]

	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}

	return out
}
