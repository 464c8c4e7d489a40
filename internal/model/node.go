// Package model defines the data structures for policy test discovery and execution.
package model

// Path represents a file system path.
type Path string

// NodeKind is the structural role of a node in the test tree.
type NodeKind int

const (
	// KindFolder is a directory grouping other nodes.
	KindFolder NodeKind = iota
	// KindFile is a policy test file.
	KindFile
	// KindTestCase is a runnable test rule declared in a file.
	KindTestCase
)

func (k NodeKind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	case KindTestCase:
		return "test"
	default:
		return "unknown"
	}
}

// Position is a zero-based line/column location.
type Position struct {
	Line   int
	Column int
}

// Range is a span in a source file.
type Range struct {
	Start Position
	End   Position
}

// Node is an element of the test tree. Nodes are owned by a Tree; Parent is
// the id of the containing node, empty for roots.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Parent string
	// URI identifies the file the node belongs to. Test cases inherit it from
	// their file node.
	URI   Path
	Range *Range
}

// IsTestCase reports whether the node is a runnable leaf test.
func (n *Node) IsTestCase() bool {
	return n != nil && n.Kind == KindTestCase
}

// NodeSet is a set of node ids. A nil NodeSet means "unspecified", which is
// different from an empty, non-nil set.
type NodeSet map[string]struct{}

// NewNodeSet builds a non-nil set from ids.
func NewNodeSet(ids ...string) NodeSet {
	set := make(NodeSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s NodeSet) Has(id string) bool {
	if s == nil {
		return false
	}

	_, ok := s[id]

	return ok
}

// IDs returns the set members in no particular order.
func (s NodeSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}

	return ids
}
