package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	m "regotest.dev/pkg/regotest/internal/model"
)

// maxVisibleRows bounds the rows shown while a run is in progress.
const maxVisibleRows = 15

// TUI implements UI using Bubble Tea for a live view of the running tests.
// Static output (tree, summary) is printed like SimpleUI.
type TUI struct {
	*SimpleUI

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(cmd *cobra.Command) *TUI {
	return &TUI{SimpleUI: NewSimpleUI(cmd)}
}

// Start launches the live view for a new run.
func (t *TUI) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	program := tea.NewProgram(
		newRunModel(),
		tea.WithOutput(t.cmd.OutOrStdout()),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})

	t.mu.Lock()
	t.program = program
	t.done = done
	t.mu.Unlock()

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil {
			slog.Error("Live view failed", "error", err)
		}
	}()

	return nil
}

// Wait blocks until the live view has rendered the end of the run.
func (t *TUI) Wait(_ context.Context) {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (t *TUI) send(msg tea.Msg) {
	t.mu.Lock()
	program := t.program
	t.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

// Enqueued adds a pending row.
func (t *TUI) Enqueued(node *m.Node) {
	t.send(enqueuedMsg{id: node.ID})
}

// Started marks a row as running.
func (t *TUI) Started(node *m.Node) {
	t.send(startedMsg{id: node.ID})
}

// Passed marks a row as passed.
func (t *TUI) Passed(node *m.Node, duration time.Duration) {
	t.send(finishedMsg{id: node.ID, outcome: m.Pass.String(), duration: duration})
}

// Failed marks a row as failed. Messages are shown by DisplaySummary.
func (t *TUI) Failed(node *m.Node, _ []string, duration time.Duration) {
	t.send(finishedMsg{id: node.ID, outcome: m.Fail.String(), duration: duration})
}

// Skipped marks a row as skipped.
func (t *TUI) Skipped(node *m.Node) {
	t.send(finishedMsg{id: node.ID, outcome: m.Skip.String()})
}

// AppendOutput sends raw run output to the log.
func (t *TUI) AppendOutput(text string, node *m.Node) {
	logRunOutput(text, node)
}

// End stops the live view.
func (t *TUI) End() {
	t.send(runEndedMsg{})
}

type (
	enqueuedMsg struct{ id string }
	startedMsg  struct{ id string }
	finishedMsg struct {
		id       string
		outcome  string
		duration time.Duration
	}
	runEndedMsg struct{}
)

type testRow struct {
	id       string
	running  bool
	outcome  string
	duration time.Duration
}

// runModel is the Bubble Tea model of one run.
type runModel struct {
	spinner  spinner.Model
	rows     []testRow
	index    map[string]int
	finished int
	failed   int
	ended    bool
}

func newRunModel() runModel {
	return runModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(skipStyle)),
		index:   make(map[string]int),
	}
}

func (rm runModel) Init() tea.Cmd {
	return rm.spinner.Tick
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case enqueuedMsg:
		if _, ok := rm.index[msg.id]; !ok {
			rm.index[msg.id] = len(rm.rows)
			rm.rows = append(rm.rows, testRow{id: msg.id})
		}

		return rm, nil
	case startedMsg:
		if i, ok := rm.index[msg.id]; ok {
			rm.rows[i].running = true
		}

		return rm, nil
	case finishedMsg:
		if i, ok := rm.index[msg.id]; ok && rm.rows[i].outcome == "" {
			rm.rows[i].running = false
			rm.rows[i].outcome = msg.outcome
			rm.rows[i].duration = msg.duration
			rm.finished++

			if msg.outcome == m.Fail.String() {
				rm.failed++
			}
		}

		return rm, nil
	case runEndedMsg:
		rm.ended = true
		return rm, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd

		rm.spinner, cmd = rm.spinner.Update(msg)

		return rm, cmd
	}

	return rm, nil
}

func (rm runModel) View() string {
	var b strings.Builder

	status := rm.spinner.View()
	if rm.ended {
		status = passStyle.Render("✓")
		if rm.failed > 0 {
			status = failStyle.Render("✗")
		}
	}

	fmt.Fprintf(&b, "%s %s %d/%d tests", status, titleStyle.Render("regotest"), rm.finished, len(rm.rows))

	if rm.failed > 0 {
		fmt.Fprintf(&b, ", %s", failStyle.Render(fmt.Sprintf("%d failed", rm.failed)))
	}

	b.WriteString("\n")

	for _, row := range rm.visibleRows() {
		switch {
		case row.running:
			fmt.Fprintf(&b, "%s %s\n", rm.spinner.View(), row.id)
		default:
			fmt.Fprintf(&b, "%s\n", renderResultLine(row.outcome, row.id, row.duration))
		}
	}

	return b.String()
}

// visibleRows returns the finished and running rows. Once the run has ended
// only failures are kept on screen.
func (rm runModel) visibleRows() []testRow {
	var rows []testRow

	for _, row := range rm.rows {
		if rm.ended {
			if row.outcome == m.Fail.String() {
				rows = append(rows, row)
			}

			continue
		}

		if row.running || row.outcome != "" {
			rows = append(rows, row)
		}
	}

	if !rm.ended && len(rows) > maxVisibleRows {
		rows = rows[len(rows)-maxVisibleRows:]
	}

	return rows
}
