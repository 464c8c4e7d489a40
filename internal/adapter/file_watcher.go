package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	m "regotest.dev/pkg/regotest/internal/model"
)

// FileWatcher reports changes to test files under a workspace root.
type FileWatcher interface {
	// Watch emits events for files whose root-relative path matches any
	// pattern. The channel is closed when ctx ends.
	Watch(ctx context.Context, root m.Path, patterns []string) (<-chan m.FileEvent, error)
}

// FSNotifyWatcher implements FileWatcher with fsnotify. fsnotify watches
// single directories, so every directory under root is registered and new
// directories are added as they appear.
type FSNotifyWatcher struct{}

// NewFSNotifyWatcher constructs an FSNotifyWatcher.
func NewFSNotifyWatcher() *FSNotifyWatcher {
	return &FSNotifyWatcher{}
}

// Watch starts watching root recursively.
func (w *FSNotifyWatcher) Watch(ctx context.Context, root m.Path, patterns []string) (<-chan m.FileEvent, error) {
	absRoot, err := filepath.Abs(string(root))
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := addTree(watcher, absRoot); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	events := make(chan m.FileEvent, chunkBufferSize)

	go func() {
		defer close(events)
		defer func() {
			if err := watcher.Close(); err != nil {
				slog.Error("Failed to close file watcher", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}

				fileEvent, emit := translate(watcher, absRoot, patterns, ev)
				if !emit {
					continue
				}

				select {
				case <-ctx.Done():
					return
				case events <- fileEvent:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				slog.Warn("File watcher error", "error", err)
			}
		}
	}()

	return events, nil
}

func translate(watcher *fsnotify.Watcher, root string, patterns []string, ev fsnotify.Event) (m.FileEvent, bool) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(watcher, ev.Name); err != nil {
				slog.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
			}

			return m.FileEvent{}, false
		}
	}

	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return m.FileEvent{}, false
	}

	matched, err := MatchAny(rel, patterns)
	if err != nil || !matched {
		return m.FileEvent{}, false
	}

	event := m.FileEvent{Path: m.Path(ev.Name)}

	switch {
	case ev.Has(fsnotify.Create):
		event.Op = m.FileCreated
	case ev.Has(fsnotify.Write):
		event.Op = m.FileChanged
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		event.Op = m.FileDeleted
	default:
		return m.FileEvent{}, false
	}

	slog.Debug("File event", "path", event.Path, "op", event.Op)

	return event, true
}

func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if path != dir && skippedDirs[entry.Name()] {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}

		return nil
	})
}
