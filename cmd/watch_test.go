package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "regotest.dev/pkg/regotest/internal/model"
)

// scriptedWatcher replays a fixed list of events and closes the channel.
type scriptedWatcher struct {
	events []m.FileEvent
	root   m.Path
}

func (w *scriptedWatcher) Watch(_ context.Context, root m.Path, _ []string) (<-chan m.FileEvent, error) {
	w.root = root

	ch := make(chan m.FileEvent, len(w.events))
	for _, ev := range w.events {
		ch <- ev
	}

	close(ch)

	return ch, nil
}

func useWatcher(t *testing.T, w *scriptedWatcher) {
	t.Helper()

	original := fileWatcher
	fileWatcher = w

	t.Cleanup(func() { fileWatcher = original })
}

func TestWatchCmd_RunsOnceThenOnChange(t *testing.T) {
	// Arrange
	dir := writeWorkspace(t)
	file := m.Path(filepath.Join(dir, "authz_test.rego"))
	spawns := useRunner(t, jsonResults())
	watcher := &scriptedWatcher{events: []m.FileEvent{{Path: file, Op: m.FileChanged}}}
	useWatcher(t, watcher)

	// Act
	out, err := executeCommand(t, newWatchCmd(), "watch", "--workdir", dir)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, m.Path(dir), watcher.root)
	assert.Contains(t, out, "Watching "+dir)
	assert.Len(t, spawns.all(), 4)
	assert.Equal(t, 4, strings.Count(out, "PASS"))
}

func TestWatchCmd_SelectedTestIgnoresOtherFiles(t *testing.T) {
	dir := writeWorkspace(t)
	spawns := useRunner(t, jsonResults())
	useWatcher(t, &scriptedWatcher{events: []m.FileEvent{
		{Path: m.Path(filepath.Join(dir, "other_test.rego")), Op: m.FileDeleted},
	}})

	_, err := executeCommand(t, newWatchCmd(), "watch", "--workdir", dir, "data.authz.test_allow")

	require.NoError(t, err)
	assert.Equal(t, []string{"data.authz.test_allow"}, spawns.filters())
}

func TestWatchCmd_SelectedFileRerunsOnChange(t *testing.T) {
	dir := writeWorkspace(t)
	file := filepath.Join(dir, "authz_test.rego")
	spawns := useRunner(t, jsonResults())
	useWatcher(t, &scriptedWatcher{events: []m.FileEvent{{Path: m.Path(file), Op: m.FileChanged}}})

	_, err := executeCommand(t, newWatchCmd(), "watch", "--workdir", dir, file)

	require.NoError(t, err)
	assert.Len(t, spawns.all(), 4)
}
