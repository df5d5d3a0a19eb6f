package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/appforge/internal/events"
)

// DAGPaneModel shows run-level progress: task counts while the run is in
// flight and the final status once it completes.
type DAGPaneModel struct {
	runID       string
	maxParallel int
	total       int
	pending     int
	running     int
	succeeded   int
	failed      int
	skipped     int
	cancelled   int
	finalStatus string
	duration    time.Duration
	width       int
	height      int
	focused     bool
}

// NewDAGPaneModel creates a new DAG pane model.
func NewDAGPaneModel() DAGPaneModel {
	return DAGPaneModel{}
}

// Update handles messages for the DAG pane.
func (m DAGPaneModel) Update(msg tea.Msg) (DAGPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.RunStartedEvent:
		m.runID = msg.Run
		m.total = msg.TaskCount
		m.pending = msg.TaskCount
		m.maxParallel = msg.MaxParallel
		m.finalStatus = ""

	case events.RunProgressEvent:
		m.total = msg.Total
		m.pending = msg.Pending
		m.running = msg.Running
		m.succeeded = msg.Succeeded
		m.failed = msg.Failed
		m.skipped = msg.Skipped
		m.cancelled = msg.Cancelled

	case events.RunCompletedEvent:
		m.finalStatus = msg.Status
		m.duration = msg.Duration
	}

	return m, nil
}

// View renders the DAG pane.
func (m DAGPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Run Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.runID != "" {
		b.WriteString(fmt.Sprintf("Run:       %s\n", shortID(m.runID)))
		b.WriteString(fmt.Sprintf("Parallel:  %d\n\n", m.maxParallel))
	}

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Succeeded: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.succeeded))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Skipped:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.skipped))))
	b.WriteString(fmt.Sprintf("Cancelled: %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.cancelled))))
	b.WriteString(fmt.Sprintf("Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		doneWidth := (m.succeeded * barWidth) / m.total
		failedWidth := ((m.failed + m.skipped + m.cancelled) * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - doneWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, doneWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.succeeded, m.total))
	}

	if m.finalStatus != "" {
		b.WriteString("\n")
		b.WriteString(m.renderFinalStatus())
		b.WriteString("\n")
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func (m DAGPaneModel) renderFinalStatus() string {
	label := fmt.Sprintf("%s in %v", m.finalStatus, m.duration.Round(time.Millisecond))
	switch m.finalStatus {
	case "success":
		return StyleStatusComplete.Render(label)
	case "partial_failure", "failed", "timed_out":
		return StyleStatusFailed.Render(label)
	default:
		return StyleStatusPending.Render(label)
	}
}

// shortID truncates a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SetSize updates the pane dimensions.
func (m *DAGPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *DAGPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
