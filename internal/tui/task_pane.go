package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/appforge/internal/events"
)

// TaskState tracks one task's display state, built up from task events.
type TaskState struct {
	ID       string
	Agent    string
	Action   string
	Status   string // "running", "success", "failed", "retrying", "skipped", "cancelled"
	Attempts int
	Log      []string
	Started  time.Time
	Duration time.Duration
}

// TaskPaneModel shows the task list on the left and the selected task's event
// log in a scrollable viewport on the right.
type TaskPaneModel struct {
	tasks       map[string]*TaskState
	taskOrder   []string // first-seen order for display
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates a new task pane model.
func NewTaskPaneModel() TaskPaneModel {
	vp := viewport.New(0, 0)
	return TaskPaneModel{
		tasks:    make(map[string]*TaskState),
		viewport: vp,
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		task, exists := m.tasks[msg.ID]
		if !exists {
			task = &TaskState{
				ID:      msg.ID,
				Agent:   msg.Agent,
				Action:  msg.Action,
				Started: msg.Timestamp,
			}
			m.tasks[msg.ID] = task
			m.taskOrder = append(m.taskOrder, msg.ID)
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
			}
		}
		task.Status = "running"
		task.Attempts = msg.Attempt
		m.appendLog(msg.ID, fmt.Sprintf("attempt %d started (%s %s)", msg.Attempt, msg.Agent, msg.Action))

	case events.TaskSucceededEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "success"
			task.Duration = msg.Duration
			m.appendLog(msg.ID, fmt.Sprintf("succeeded in %v", msg.Duration.Round(time.Millisecond)))
		}

	case events.TaskFailedEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			if msg.Final {
				task.Status = "failed"
				m.appendLog(msg.ID, fmt.Sprintf("failed permanently: %s", msg.Err))
			} else {
				m.appendLog(msg.ID, fmt.Sprintf("attempt %d failed: %s", msg.Attempt, msg.Err))
			}
		}

	case events.TaskRetryingEvent:
		if task, exists := m.tasks[msg.ID]; exists {
			task.Status = "retrying"
			m.appendLog(msg.ID, fmt.Sprintf("retrying after %v", msg.Delay.Round(time.Millisecond)))
		}

	case events.TaskSkippedEvent:
		task, exists := m.tasks[msg.ID]
		if !exists {
			// Skipped tasks never ran, so this may be their first event
			task = &TaskState{ID: msg.ID}
			m.tasks[msg.ID] = task
			m.taskOrder = append(m.taskOrder, msg.ID)
		}
		task.Status = "skipped"
		m.appendLog(msg.ID, fmt.Sprintf("skipped: upstream task %q failed", msg.Cause))

	case events.TaskCancelledEvent:
		task, exists := m.tasks[msg.ID]
		if !exists {
			task = &TaskState{ID: msg.ID}
			m.tasks[msg.ID] = task
			m.taskOrder = append(m.taskOrder, msg.ID)
		}
		task.Status = "cancelled"
		m.appendLog(msg.ID, "cancelled")
	}

	return m, cmd
}

// appendLog adds a line to a task's log and refreshes the viewport when that
// task is the one on screen.
func (m *TaskPaneModel) appendLog(taskID, line string) {
	task, exists := m.tasks[taskID]
	if !exists {
		return
	}
	task.Log = append(task.Log, fmt.Sprintf("%s  %s", time.Now().Format("15:04:05"), line))
	if m.selectedTaskID() == taskID {
		m.updateViewportContent()
	}
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	listWidth := 25
	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderTaskList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// renderTaskList renders the task list column.
func (m TaskPaneModel) renderTaskList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, taskID := range m.taskOrder {
			task := m.tasks[taskID]
			icon := m.StatusIcon(task.Status)
			name := task.ID
			if len(name) > width-6 {
				name = name[:width-9] + "..."
			}

			line := fmt.Sprintf("%s %s", icon, name)
			if i == m.selectedIdx {
				line = lipgloss.NewStyle().
					Background(lipgloss.Color("62")).
					Foreground(lipgloss.Color("0")).
					Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func (m TaskPaneModel) StatusIcon(status string) string {
	switch status {
	case "running", "retrying":
		return StyleStatusRunning.Render("●")
	case "success":
		return StyleStatusComplete.Render("✓")
	case "failed":
		return StyleStatusFailed.Render("✗")
	case "skipped", "cancelled":
		return StyleStatusPending.Render("−")
	default:
		return StyleStatusPending.Render("○")
	}
}

// selectedTaskID returns the id of the currently selected task.
func (m TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.taskOrder) {
		return m.taskOrder[m.selectedIdx]
	}
	return ""
}

// updateViewportContent fills the viewport with the selected task's log.
func (m *TaskPaneModel) updateViewportContent() {
	taskID := m.selectedTaskID()
	if taskID == "" {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	task, exists := m.tasks[taskID]
	if !exists {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	header := fmt.Sprintf("%s  (%s %s)\n\n", task.ID, task.Agent, task.Action)
	m.viewport.SetContent(header + strings.Join(task.Log, "\n"))
	m.viewport.GotoBottom()
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *TaskPaneModel) resizeViewport() {
	listWidth := 25
	viewportWidth := m.width - listWidth - 4
	viewportHeight := m.height - 4

	if viewportWidth < 10 {
		viewportWidth = 10
	}
	if viewportHeight < 5 {
		viewportHeight = 5
	}

	m.viewport.Width = viewportWidth
	m.viewport.Height = viewportHeight
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
