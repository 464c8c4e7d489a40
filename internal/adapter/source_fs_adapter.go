// Package adapter contains process, filesystem and storage adapters for the regotest CLI.
package adapter

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar"
	m "regotest.dev/pkg/regotest/internal/model"
)

// SourceFSAdapter abstracts the filesystem operations discovery relies on,
// so the domain layer can be tested without touching the disk.
type SourceFSAdapter interface {
	// FindFiles walks root and returns the absolute paths of files whose
	// root-relative, slash-separated path matches any pattern.
	FindFiles(ctx context.Context, root m.Path, patterns []string) ([]m.Path, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// Abs returns the cleaned absolute form of path.
	Abs(path m.Path) (m.Path, error)
}

// skippedDirs are never descended into while searching for test files.
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// LocalSourceFSAdapter implements SourceFSAdapter on the local disk.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// FindFiles returns matching files in walk order.
func (a *LocalSourceFSAdapter) FindFiles(ctx context.Context, root m.Path, patterns []string) ([]m.Path, error) {
	absRoot, err := a.Abs(root)
	if err != nil {
		return nil, err
	}

	var found []m.Path

	err = filepath.WalkDir(string(absRoot), func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if entry.IsDir() {
			if path != string(absRoot) && skippedDirs[entry.Name()] {
				return filepath.SkipDir
			}

			return nil
		}

		rel, err := filepath.Rel(string(absRoot), path)
		if err != nil {
			return err
		}

		matched, err := MatchAny(rel, patterns)
		if err != nil {
			return err
		}

		if matched {
			found = append(found, m.Path(path))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", root, err)
	}

	return found, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(ctx context.Context, path m.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.ReadFile(string(path))
}

// Abs returns the cleaned absolute path.
func (a *LocalSourceFSAdapter) Abs(path m.Path) (m.Path, error) {
	abs, err := filepath.Abs(string(path))
	if err != nil {
		return "", err
	}

	return m.Path(filepath.Clean(abs)), nil
}

// MatchAny reports whether the relative path matches any glob pattern.
// Patterns use forward slashes and support `**`.
func MatchAny(relPath string, patterns []string) (bool, error) {
	slashed := filepath.ToSlash(relPath)

	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, slashed)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}
