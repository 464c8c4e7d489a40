package domain

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	m "regotest.dev/pkg/regotest/internal/model"
)

// watchKey identifies a registration: either every test or one node.
type watchKey struct {
	all    bool
	nodeID string
}

type watchEntry struct {
	key     watchKey
	uri     m.Path
	profile m.Profile
}

// WatchState holds the tests currently registered for continuous runs. It
// is owned by the caller and shared by reference; entries keep their first
// registration order.
type WatchState struct {
	mu      sync.Mutex
	entries []watchEntry
}

// NewWatchState returns an empty WatchState.
func NewWatchState() *WatchState {
	return &WatchState{}
}

// RegisterAll watches every test with profile until ctx is cancelled.
func (w *WatchState) RegisterAll(ctx context.Context, profile m.Profile) {
	w.register(ctx, []watchEntry{{key: watchKey{all: true}, profile: profile}})
}

// Register watches nodes with profile until ctx is cancelled. The file a
// node belongs to is captured at registration.
func (w *WatchState) Register(ctx context.Context, nodes []*m.Node, profile m.Profile) {
	entries := make([]watchEntry, 0, len(nodes))
	for _, node := range nodes {
		entries = append(entries, watchEntry{
			key:     watchKey{nodeID: node.ID},
			uri:     node.URI,
			profile: profile,
		})
	}

	w.register(ctx, entries)
}

func (w *WatchState) register(ctx context.Context, entries []watchEntry) {
	w.mu.Lock()

	for _, entry := range entries {
		if i := w.indexLocked(entry.key); i >= 0 {
			w.entries[i] = entry
			continue
		}

		w.entries = append(w.entries, entry)
	}

	w.mu.Unlock()

	context.AfterFunc(ctx, func() {
		w.unregister(entries)
	})
}

func (w *WatchState) unregister(entries []watchEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, entry := range entries {
		if i := w.indexLocked(entry.key); i >= 0 {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
		}
	}
}

func (w *WatchState) indexLocked(key watchKey) int {
	for i, entry := range w.entries {
		if entry.key == key {
			return i
		}
	}

	return -1
}

// Len returns the number of registrations.
func (w *WatchState) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.entries)
}

// All returns the profile registered for every test, if any.
func (w *WatchState) All() (m.Profile, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if i := w.indexLocked(watchKey{all: true}); i >= 0 {
		return w.entries[i].profile, true
	}

	return "", false
}

// Matching returns the ids of registered nodes whose file is path, and the
// profile of the last match in registration order.
func (w *WatchState) Matching(path m.Path) ([]string, m.Profile) {
	w.mu.Lock()
	defer w.mu.Unlock()

	target := normalizePath(path)

	var (
		ids     []string
		profile m.Profile
	)

	for _, entry := range w.entries {
		if entry.key.all || entry.uri == "" {
			continue
		}

		if normalizePath(entry.uri) == target {
			ids = append(ids, entry.key.nodeID)
			profile = entry.profile
		}
	}

	return ids, profile
}

func normalizePath(path m.Path) m.Path {
	abs, err := filepath.Abs(string(path))
	if err != nil {
		return m.Path(filepath.Clean(string(path)))
	}

	return m.Path(abs)
}

// RunStarter starts a run for req. It may block until the run finishes.
type RunStarter func(ctx context.Context, req m.RunRequest)

// Dispatcher routes run requests and file changes to runs, keeping
// continuous requests registered in a WatchState.
type Dispatcher struct {
	tree  *m.Tree
	state *WatchState
	start RunStarter
}

// NewDispatcher constructs a Dispatcher. Node files are looked up in tree
// when a continuous request is registered.
func NewDispatcher(tree *m.Tree, state *WatchState, start RunStarter) *Dispatcher {
	return &Dispatcher{
		tree:  tree,
		state: state,
		start: start,
	}
}

// HandleRunRequest starts a run for a one-shot request. A continuous request
// is registered instead and stays registered until ctx is cancelled.
func (d *Dispatcher) HandleRunRequest(ctx context.Context, req m.RunRequest) {
	if !req.Continuous {
		d.start(ctx, req)
		return
	}

	if req.Include == nil {
		slog.Debug("Watching all tests", "profile", req.Profile)
		d.state.RegisterAll(ctx, req.Profile)

		return
	}

	nodes := make([]*m.Node, 0, len(req.Include))

	for _, id := range req.Include.IDs() {
		node, ok := d.tree.Get(id)
		if !ok {
			node = &m.Node{ID: id}
		}

		nodes = append(nodes, node)
	}

	slog.Debug("Watching tests", "count", len(nodes), "profile", req.Profile)
	d.state.Register(ctx, nodes, req.Profile)
}

// HandleFileChanged starts the run a change to path calls for and reports
// whether one was started.
func (d *Dispatcher) HandleFileChanged(ctx context.Context, path m.Path) bool {
	if profile, ok := d.state.All(); ok {
		slog.Debug("File changed, running all tests", "path", path)
		d.start(ctx, m.RunRequest{Continuous: true, Profile: profile})

		return true
	}

	ids, profile := d.state.Matching(path)
	if len(ids) == 0 {
		return false
	}

	slog.Debug("File changed, running watched tests", "path", path, "count", len(ids))
	d.start(ctx, m.RunRequest{Include: m.NewNodeSet(ids...), Continuous: true, Profile: profile})

	return true
}
