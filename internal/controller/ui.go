// Package controller renders test runs and discovered tests for the terminal.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"regotest.dev/pkg/regotest/internal/domain"
	m "regotest.dev/pkg/regotest/internal/model"
)

// UI displays discovery results and test runs. It observes a run through
// the domain.RunObserver callbacks.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	domain.RunObserver
	// Start prepares the display for a new run.
	Start(ctx context.Context) error
	// Wait blocks until the display of the current run has finished.
	Wait(ctx context.Context)
	DisplayTree(ctx context.Context, tree *m.Tree) error
	DisplaySummary(ctx context.Context, report m.RunReport) error
	DisplayWatching(ctx context.Context, root m.Path, patterns []string)
}

// NewUI returns the interactive UI when tty is true and the plain text UI
// otherwise.
func NewUI(cmd *cobra.Command, tty bool) UI {
	if tty {
		return NewTUI(cmd)
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
