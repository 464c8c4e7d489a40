package model

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNode(id string) *Node {
	return &Node{ID: id, Label: id, Kind: KindFile, URI: Path(id)}
}

func testNode(id string) *Node {
	return &Node{ID: id, Label: id, Kind: KindTestCase}
}

func ids(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID)
	}

	return out
}

func TestTree_AddAndGet(t *testing.T) {
	tree := NewTree()

	require.NoError(t, tree.Add(fileNode("/a_test.rego")))

	node, ok := tree.Get("/a_test.rego")
	require.True(t, ok)
	assert.Equal(t, KindFile, node.Kind)
	assert.Equal(t, 1, tree.Len())
}

func TestTree_Add_RequiresID(t *testing.T) {
	tree := NewTree()

	assert.Error(t, tree.Add(&Node{}))
	assert.Error(t, tree.Add(nil))
}

func TestTree_Add_UnknownParent(t *testing.T) {
	tree := NewTree()

	err := tree.Add(&Node{ID: "x", Parent: "missing"})
	assert.Error(t, err)
}

func TestTree_ReplaceChildren_DiscardsOldSet(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f")))

	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("a"), testNode("b")}))
	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("c")}))

	assert.Equal(t, []string{"c"}, ids(tree.Children("f")))

	_, ok := tree.Get("a")
	assert.False(t, ok)

	c, ok := tree.Get("c")
	require.True(t, ok)
	assert.Equal(t, "f", c.Parent)
}

func TestTree_ReplaceChildren_DuplicateIDs(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f")))

	first := testNode("a")
	require.NoError(t, tree.ReplaceChildren("f", []*Node{first, testNode("b"), testNode("a")}))

	assert.Equal(t, []string{"a", "b"}, ids(tree.Children("f")))

	got, ok := tree.Get("a")
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestTree_ReplaceChildren_UnknownParent(t *testing.T) {
	tree := NewTree()

	assert.Error(t, tree.ReplaceChildren("nope", nil))
}

func TestTree_ReplaceChildren_MovesIDFromOtherFile(t *testing.T) {
	// Arrange
	var logs bytes.Buffer

	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(original) })

	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("a_test.rego")))
	require.NoError(t, tree.Add(fileNode("b_test.rego")))
	require.NoError(t, tree.ReplaceChildren("a_test.rego", []*Node{testNode("data.p.test_x")}))

	// Act
	require.NoError(t, tree.ReplaceChildren("b_test.rego", []*Node{testNode("data.p.test_x")}))

	// Assert
	assert.Empty(t, tree.Children("a_test.rego"))
	assert.Equal(t, []string{"data.p.test_x"}, ids(tree.Children("b_test.rego")))

	node, ok := tree.Get("data.p.test_x")
	require.True(t, ok)
	assert.Equal(t, "b_test.rego", node.Parent)
	assert.Contains(t, logs.String(), "Test id declared in more than one file")
	assert.Contains(t, logs.String(), "previous=a_test.rego")
}

func TestTree_ReplaceChildren_RescanDoesNotWarn(t *testing.T) {
	var logs bytes.Buffer

	original := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(original) })

	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f")))
	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("a")}))
	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("a")}))

	assert.Empty(t, logs.String())
}

func TestTree_Candidates_ChildrenBeforeParent(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f1")))
	require.NoError(t, tree.Add(fileNode("f2")))
	require.NoError(t, tree.ReplaceChildren("f1", []*Node{testNode("a"), testNode("b")}))
	require.NoError(t, tree.ReplaceChildren("f2", []*Node{testNode("c")}))

	assert.Equal(t, []string{"a", "b", "f1", "c", "f2"}, ids(tree.Candidates()))
}

func TestTree_Delete_RemovesSubtree(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f")))
	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("a")}))

	assert.True(t, tree.Delete("f"))
	assert.False(t, tree.Delete("f"))
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.Roots())
}

func TestTree_Add_ReplacesExisting(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f")))
	require.NoError(t, tree.ReplaceChildren("f", []*Node{testNode("a")}))

	require.NoError(t, tree.Add(fileNode("f")))

	assert.Equal(t, []string{"f"}, ids(tree.Roots()))
	assert.Empty(t, tree.Children("f"))
}

func TestTree_ConcurrentReplaceAndRead(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.Add(fileNode("f1")))
	require.NoError(t, tree.Add(fileNode("f2")))

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()

			unlock := tree.LockSubtree("f1")
			defer unlock()

			_ = tree.ReplaceChildren("f1", []*Node{testNode("a1"), testNode("b1")})
		}()

		go func() {
			defer wg.Done()

			unlock := tree.LockSubtree("f2")
			defer unlock()

			_ = tree.ReplaceChildren("f2", []*Node{testNode("a2")})
		}()

		go func() {
			defer wg.Done()

			_ = tree.Candidates()
		}()
	}

	wg.Wait()

	assert.Equal(t, []string{"a1", "b1", "f1", "a2", "f2"}, ids(tree.Candidates()))
}

func TestNodeSet(t *testing.T) {
	var unset NodeSet
	assert.False(t, unset.Has("a"))

	set := NewNodeSet("a", "b")
	assert.True(t, set.Has("a"))
	assert.False(t, set.Has("c"))
	assert.ElementsMatch(t, []string{"a", "b"}, set.IDs())
	assert.NotNil(t, NewNodeSet())
}
