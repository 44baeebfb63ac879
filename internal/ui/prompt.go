package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quasar/mcauth/internal/accounts"
)

// PromptKind says what a prompt asks for.
type PromptKind int

const (
	PromptProfileName PromptKind = iota
	PromptSkinFile
)

// PromptModel asks for one line of text for an account operation.
type PromptModel struct {
	kind    PromptKind
	account *accounts.Account
	input   textinput.Model
	width   int
	err     string
}

// NewPromptModel creates a prompt of the given kind.
func NewPromptModel(kind PromptKind, account *accounts.Account) *PromptModel {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50
	switch kind {
	case PromptProfileName:
		ti.Placeholder = "Steve"
		ti.CharLimit = 16
	case PromptSkinFile:
		ti.Placeholder = "~/skins/steve.png slim"
	}
	ti.Focus()

	return &PromptModel{kind: kind, account: account, input: ti}
}

// SetError shows err under the input.
func (m *PromptModel) SetError(err string) {
	m.err = err
}

func (m *PromptModel) SetSize(w, _ int) {
	m.width = w
	m.input.Width = max(w-10, 20)
}

func (m *PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			return m, func() tea.Msg { return NavigateToHome{} }
		case "enter":
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				return m, nil
			}
			kind, acc := m.kind, m.account
			return m, func() tea.Msg { return PromptSubmitted{Kind: kind, Account: acc, Value: value} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *PromptModel) View() string {
	var title, hint string
	switch m.kind {
	case PromptProfileName:
		title = "Create Minecraft profile"
		hint = "Pick the name other players will see. 3 to 16 letters, digits or underscores."
	case PromptSkinFile:
		title = "Change skin"
		hint = "Path to a 64x64 or 64x32 PNG, optionally followed by 'classic' or 'slim'."
	}

	parts := []string{
		TitleStyle.Render(title),
		SubtleStyle.Render(m.account.Snapshot().DisplayName()),
		"",
		wrapText(hint, m.width-4),
		"",
		m.input.View(),
	}
	if m.err != "" {
		parts = append(parts, "", ErrorStyle.Render(wrapText(m.err, m.width-4)))
	}
	parts = append(parts, "", HelpStyle.Render("[Enter] Confirm • [Esc] Back"))

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
