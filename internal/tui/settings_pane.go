package tui

import (
	"fmt"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/appforge/internal/config"
)

// SettingsPaneModel manages the settings form overlay for run defaults.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error

	// Form field bindings (strings for Huh)
	saveTarget   string
	maxParallel  string
	retryFailed  bool
	maxRetries   string
	totalTimeout string
	workspaceDir string
}

// NewSettingsPaneModel creates a new settings pane.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,

		saveTarget:   "global",
		maxParallel:  strconv.Itoa(cfg.Defaults.MaxParallelAgents),
		retryFailed:  cfg.Defaults.RetryFailedTasks,
		maxRetries:   strconv.Itoa(cfg.Defaults.MaxRetries),
		totalTimeout: strconv.Itoa(cfg.Defaults.TotalTimeoutSecs),
		workspaceDir: cfg.WorkspaceDir,
	}

	m.buildForm()
	return m
}

// validateIntAtLeast rejects values that do not parse as an int >= floor.
func validateIntAtLeast(floor int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("must be a number")
		}
		if n < floor {
			return fmt.Errorf("must be at least %d", floor)
		}
		return nil
	}
}

// buildForm constructs the Huh form with all settings fields.
func (m *SettingsPaneModel) buildForm() {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.appforge/config.json)", "global"),
					huh.NewOption("Project (.appforge/config.json)", "project"),
				).
				Value(&m.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Key("maxParallel").
				Title("Max Parallel Tasks").
				Value(&m.maxParallel).
				Validate(validateIntAtLeast(1)).
				Placeholder("2"),

			huh.NewConfirm().
				Key("retryFailed").
				Title("Retry Failed Tasks").
				Value(&m.retryFailed),

			huh.NewInput().
				Key("maxRetries").
				Title("Max Retries").
				Value(&m.maxRetries).
				Validate(validateIntAtLeast(0)).
				Placeholder("2"),

			huh.NewInput().
				Key("totalTimeout").
				Title("Total Timeout (seconds, 0 = none)").
				Value(&m.totalTimeout).
				Validate(validateIntAtLeast(0)).
				Placeholder("3600"),
		).Title("Run Defaults"),

		huh.NewGroup(
			huh.NewInput().
				Key("workspaceDir").
				Title("Workspace Directory").
				Value(&m.workspaceDir).
				Placeholder(".appforge/workspaces"),
		).Title("Paths"),
	)
}

// Init initializes the settings pane.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages for the settings pane.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Cancel without saving
			m.visible = false
			m.saved = false
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.applyFormToConfig()

		targetPath := m.globalPath
		if m.saveTarget == "project" {
			targetPath = m.projectPath
		}

		if err := config.Save(m.config, targetPath); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// applyFormToConfig copies form field values back to the config struct.
// Fields are validated by the form, so parse failures fall back to the
// current value.
func (m *SettingsPaneModel) applyFormToConfig() {
	if n, err := strconv.Atoi(m.maxParallel); err == nil {
		m.config.Defaults.MaxParallelAgents = n
	}
	m.config.Defaults.RetryFailedTasks = m.retryFailed
	if n, err := strconv.Atoi(m.maxRetries); err == nil {
		m.config.Defaults.MaxRetries = n
	}
	if n, err := strconv.Atoi(m.totalTimeout); err == nil {
		m.config.Defaults.TotalTimeoutSecs = n
	}
	if m.workspaceDir != "" {
		m.config.WorkspaceDir = m.workspaceDir
	}
}

// View renders the settings pane.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string

	if m.saved && m.form.State == huh.StateCompleted {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true).
			Render("✓ Settings saved successfully!")
	} else if m.err != nil {
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	} else {
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the settings pane.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil

	// Rebuild the form so a reopened panel starts from a clean state
	if v && m.form != nil {
		m.buildForm()
	}
}

// IsVisible returns whether the settings pane is currently visible.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}
