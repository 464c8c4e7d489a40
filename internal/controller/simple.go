package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	m "regotest.dev/pkg/regotest/internal/model"
)

// SimpleUI implements UI by printing one line per finished test to the
// cobra command's output.
type SimpleUI struct {
	cmd *cobra.Command
	mu  sync.Mutex
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context) error {
	return ctx.Err()
}

// Wait returns immediately; SimpleUI prints as results arrive.
func (s *SimpleUI) Wait(_ context.Context) {}

// Enqueued is a no-op; queued tests are only printed once they finish.
func (s *SimpleUI) Enqueued(_ *m.Node) {}

// Started is a no-op.
func (s *SimpleUI) Started(_ *m.Node) {}

// Passed prints a PASS line.
func (s *SimpleUI) Passed(node *m.Node, duration time.Duration) {
	s.printf("%s\n", renderResultLine(m.Pass.String(), node.ID, duration))
}

// Failed prints a FAIL line followed by its messages.
func (s *SimpleUI) Failed(node *m.Node, messages []string, duration time.Duration) {
	var b strings.Builder

	b.WriteString(renderResultLine(m.Fail.String(), node.ID, duration))
	b.WriteString("\n")

	for _, msg := range messages {
		b.WriteString(indent(msg))
		b.WriteString("\n")
	}

	s.printf("%s", b.String())
}

// Skipped prints a SKIP line.
func (s *SimpleUI) Skipped(node *m.Node) {
	s.printf("%s\n", renderResultLine(m.Skip.String(), node.ID, 0))
}

// AppendOutput sends raw run output to the log.
func (s *SimpleUI) AppendOutput(text string, node *m.Node) {
	logRunOutput(text, node)
}

// End is a no-op.
func (s *SimpleUI) End() {}

// DisplayTree prints every discovered test.
func (s *SimpleUI) DisplayTree(ctx context.Context, tree *m.Tree) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if tree.Len() == 0 {
		s.printf("No test files found\n")
		return nil
	}

	s.printf("\n%s", renderTree(tree))

	return nil
}

// DisplaySummary prints the failures of report and a summary table.
func (s *SimpleUI) DisplaySummary(ctx context.Context, report m.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if failures := renderFailures(report); failures != "" {
		s.printf("\n%s\n%s", titleStyle.Render("Failures:"), failures)
	}

	s.printf("\n%s", renderSummaryTable(report))

	return nil
}

// DisplayWatching announces that files are being watched.
func (s *SimpleUI) DisplayWatching(ctx context.Context, root m.Path, patterns []string) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Watching %s for changes to %s (Ctrl-C to stop)\n", root, strings.Join(patterns, ", "))
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func logRunOutput(text string, node *m.Node) {
	text = strings.TrimRight(text, "\r\n")
	if text == "" {
		return
	}

	if node != nil {
		slog.Debug("Run output", "testID", node.ID, "output", text)
		return
	}

	slog.Debug("Run output", "output", text)
}
