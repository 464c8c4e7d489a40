package controller

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	m "regotest.dev/pkg/regotest/internal/model"
)

var (
	passStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	skipStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

func outcomeLabel(outcome string) string {
	switch outcome {
	case m.Pass.String():
		return passStyle.Render("PASS")
	case m.Fail.String():
		return failStyle.Render("FAIL")
	case m.Skip.String():
		return skipStyle.Render("SKIP")
	default:
		return faintStyle.Render("....")
	}
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}

	return faintStyle.Render(fmt.Sprintf("(%s)", d.Round(time.Microsecond)))
}

// indent prefixes every line of text with four spaces.
func indent(text string) string {
	lines := strings.Split(strings.TrimRight(text, "\r\n"), "\n")
	for i, line := range lines {
		lines[i] = "    " + strings.TrimRight(line, "\r")
	}

	return strings.Join(lines, "\n")
}

func renderResultLine(outcome, testID string, duration time.Duration) string {
	line := fmt.Sprintf("%s %s", outcomeLabel(outcome), testID)
	if d := formatDuration(duration); d != "" {
		line += " " + d
	}

	return line
}

func renderSummaryTable(report m.RunReport) string {
	var tableBuffer bytes.Buffer

	passed, failed, skipped := report.Counts()

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Outcome", "Tests"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	table.Append([]string{"passed", fmt.Sprintf("%d", passed)})
	table.Append([]string{"failed", fmt.Sprintf("%d", failed)})
	table.Append([]string{"skipped", fmt.Sprintf("%d", skipped)})

	elapsed := ""
	if !report.EndedAt.IsZero() {
		elapsed = report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond).String()
	}

	table.SetFooter([]string{fmt.Sprintf("Total %s", elapsed), fmt.Sprintf("%d", len(report.Entries))})
	table.Render()

	return tableBuffer.String()
}

func renderFailures(report m.RunReport) string {
	var b strings.Builder

	for _, entry := range report.Entries {
		if entry.Outcome != m.Fail.String() {
			continue
		}

		fmt.Fprintf(&b, "%s %s\n", failStyle.Render("---"), entry.TestID)

		for _, msg := range entry.Messages {
			b.WriteString(indent(msg))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func renderTree(tree *m.Tree) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Test", "File", "Line"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	files, tests := 0, 0

	for _, file := range tree.Roots() {
		files++

		for _, node := range tree.Children(file.ID) {
			if !node.IsTestCase() {
				continue
			}

			tests++

			line := ""
			if node.Range != nil {
				line = fmt.Sprintf("%d", node.Range.Start.Line+1)
			}

			table.Append([]string{node.ID, filepath.Base(string(node.URI)), line})
		}
	}

	table.SetFooter([]string{fmt.Sprintf("Total Files %d", files), "", fmt.Sprintf("%d", tests)})
	table.Render()

	return tableBuffer.String()
}
