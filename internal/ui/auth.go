package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/api"
)

// LoginModel shows the device code for a Microsoft sign in and then the
// progress of the login pipeline.
type LoginModel struct {
	width  int
	height int

	task       *TaskModel
	deviceCode *api.DeviceCodeResponse
	copied     bool

	// Swappable for tests.
	openURL   func(string) error
	clipboard func(string) error
}

// NewLoginModel creates the view for a login running on account.
func NewLoginModel(account *accounts.Account) *LoginModel {
	return &LoginModel{
		task:      NewTaskModel(account, "Microsoft Authentication"),
		openURL:   openBrowser,
		clipboard: copyToClipboard,
	}
}

// Task returns the embedded progress view.
func (m *LoginModel) Task() *TaskModel {
	return m.task
}

func (m *LoginModel) Init() tea.Cmd {
	return m.task.Init()
}

func (m *LoginModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.task.SetSize(w, h)
}

func (m *LoginModel) waiting() bool {
	return m.deviceCode != nil && !m.task.Done() && len(m.task.steps) <= 1
}

func (m *LoginModel) copyCode() tea.Cmd {
	m.copied = m.clipboard(m.deviceCode.UserCode) == nil
	return tea.Tick(2*time.Second, func(_ time.Time) tea.Msg { return clearCopiedMsg{} })
}

func (m *LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && m.waiting() {
			return m, m.copyCode()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "o":
			if m.waiting() {
				m.openURL(m.deviceCode.VerificationURI)
			}
			return m, nil
		case "c":
			if m.waiting() {
				return m, m.copyCode()
			}
			return m, nil
		}

	case DeviceCodeReceived:
		m.deviceCode = msg.Code
		// Auto-copy the code, then open the browser a moment later.
		return m, tea.Batch(
			m.copyCode(),
			tea.Tick(1*time.Second, func(_ time.Time) tea.Msg { return openBrowserMsg{} }),
		)

	case openBrowserMsg:
		if m.waiting() {
			m.openURL(m.deviceCode.VerificationURI)
		}
		return m, nil

	case clearCopiedMsg:
		m.copied = false
		return m, nil
	}

	_, cmd := m.task.Update(msg)
	return m, cmd
}

func (m *LoginModel) View() string {
	doc := lipgloss.NewStyle().Padding(2, 4)

	if !m.waiting() {
		return doc.Render(m.task.View())
	}

	codeText := m.deviceCode.UserCode
	actionText := "[c] Copy code"
	if m.copied {
		codeText += "  ✓ Copied!"
		actionText = "[✓] Copied!"
	}

	content := fmt.Sprintf(`%s

To sign in, use a web browser to open the page:
%s

And enter the code:
%s

%s Waiting for you to sign in...
%s • [o] Open browser • [Esc] Cancel
`, TitleStyle.Render("Microsoft Authentication"),
		LinkStyle.Render(m.deviceCode.VerificationURI),
		CodeBoxStyle.Render(codeText),
		m.task.spinner.View(),
		actionText)

	return doc.Render(content)
}

type clearCopiedMsg struct{}
type openBrowserMsg struct{}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	case "darwin":
		return exec.Command("open", url).Start()
	default:
		return fmt.Errorf("unsupported platform")
	}
}

func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}
