package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/auth"
)

// TaskModel shows the progress of one account operation
type TaskModel struct {
	account *accounts.Account
	title   string
	width   int
	height  int

	progress progress.Model
	spinner  spinner.Model
	status   auth.Status
	steps    []stepInfo
	done     bool
	result   auth.Result
}

type stepInfo struct {
	name   string
	status string // running, done, error
}

// NewTaskModel creates a progress view for an operation on account.
func NewTaskModel(account *accounts.Account, title string) *TaskModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &TaskModel{
		account:  account,
		title:    title,
		progress: p,
		spinner:  s,
	}
}

// Account returns the account the operation runs on.
func (m *TaskModel) Account() *accounts.Account {
	return m.account
}

// Done reports whether the operation finished.
func (m *TaskModel) Done() bool {
	return m.done
}

// Result returns the final result once Done.
func (m *TaskModel) Result() auth.Result {
	return m.result
}

// SetSize updates dimensions
func (m *TaskModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.progress.Width = max(width-10, 10)
}

// Init implements tea.Model
func (m *TaskModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m *TaskModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TaskStatusUpdate:
		m.status = msg.Status
		if !msg.Status.Done {
			m.startStep(msg.Status.Message)
		}
		return m, m.progress.SetPercent(msg.Status.Progress)

	case TaskComplete:
		m.done = true
		m.result = msg.Result
		final := "done"
		if msg.Result.State != auth.TaskSucceeded {
			final = "error"
		}
		if n := len(m.steps); n > 0 && m.steps[n-1].status == "running" {
			m.steps[n-1].status = final
		}
		return m, m.progress.SetPercent(1.0)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
			return m, func() tea.Msg { return CancelTask{} }
		case "enter":
			if m.done {
				return m, func() tea.Msg { return NavigateToHome{} }
			}
		}
	}

	return m, nil
}

func (m *TaskModel) startStep(name string) {
	for i := range m.steps {
		if m.steps[i].status == "running" {
			m.steps[i].status = "done"
		}
	}
	m.steps = append(m.steps, stepInfo{name: name, status: "running"})
}

// View implements tea.Model
func (m *TaskModel) View() string {
	header := TitleStyle.Render(m.title)
	info := SubtleStyle.Render(m.account.Snapshot().DisplayName())

	var stepsView strings.Builder
	for _, step := range m.steps {
		var icon string
		var style lipgloss.Style
		switch step.status {
		case "done":
			icon = "✓"
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
		case "running":
			icon = m.spinner.View()
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
		default:
			icon = "✗"
			style = lipgloss.NewStyle().Foreground(ColorError)
		}
		stepsView.WriteString(style.Render(fmt.Sprintf("%s %s", icon, step.name)))
		stepsView.WriteString("\n")
	}

	var footer string
	switch {
	case !m.done:
		footer = HelpStyle.Render("\n[Esc] Cancel")
	case m.result.State == auth.TaskSucceeded:
		footer = SuccessStyle.Render("\n✓ "+m.result.Message) + HelpStyle.Render("\n\nPress Enter to go back")
	case m.result.State == auth.TaskCancelled:
		footer = SubtleStyle.Render("\nCancelled.") + HelpStyle.Render("\n\nPress Enter to go back")
	default:
		footer = ErrorStyle.Render("\n✗ "+wrapText(m.result.Message, m.width-4)) +
			HelpStyle.Render("\n\nPress Enter to go back")
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		info,
		"",
		m.progress.View(),
		"",
		stepsView.String(),
		footer,
	)
}
