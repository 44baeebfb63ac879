// Package ui contains all TUI view components.
// Each view is a Bubbletea model that can be composed into the main app.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/core"
)

// AccountsModel is the account list view
type AccountsModel struct {
	list     list.Model
	accounts []*accounts.Account
	active   *accounts.Account
	width    int
	height   int
	keys     accountsKeyMap
	loading  bool
	now      func() time.Time

	note    string
	noteErr bool
}

type accountsKeyMap struct {
	Add           key.Binding
	Refresh       key.Binding
	Delete        key.Binding
	Select        key.Binding
	CreateProfile key.Binding
	Skin          key.Binding
}

func defaultAccountsKeyMap() accountsKeyMap {
	return accountsKeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add account"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Select: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp("s", "make active"),
		),
		CreateProfile: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "create profile"),
		),
		Skin: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "change skin"),
		),
	}
}

// accountItem represents an account in the list
type accountItem struct {
	account *accounts.Account
	active  bool
	now     time.Time
}

func (i accountItem) Title() string {
	name := i.account.Snapshot().DisplayName()
	if i.active {
		name += " ★"
	}
	return name
}

func (i accountItem) Description() string {
	snap := i.account.Snapshot()
	state := snap.State(i.now)
	desc := stateStyle(state).Render(state.String())

	switch state {
	case core.StateOnline, core.StateExpired:
		desc += " • " + expiryText(snap.GameToken.ExpiresAt, i.now)
	case core.StateDisabled, core.StateGone, core.StateRequiresAction:
		desc += " • " + snap.LastError
	}
	if !snap.HasProfile() && snap.GameToken.IsValid() {
		desc += " • no profile"
	}
	if i.account.Busy() {
		desc += " • working..."
	}
	return desc
}

func (i accountItem) FilterValue() string { return i.account.Snapshot().DisplayName() }

func expiryText(expires, now time.Time) string {
	if expires.IsZero() {
		return "no expiry"
	}
	if expires.Before(now) {
		return "expired " + humanize.RelTime(expires, now, "ago", "from now")
	}
	return "expires " + humanize.RelTime(expires, now, "ago", "from now")
}

// NewAccountsModel creates a new account list view
func NewAccountsModel(now func() time.Time) *AccountsModel {
	if now == nil {
		now = time.Now
	}
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorPrimary).
		BorderLeftForeground(ColorPrimary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSecondary).
		BorderLeftForeground(ColorPrimary)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Minecraft Accounts"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle
	l.SetShowHelp(false)

	return &AccountsModel{
		list:    l,
		keys:    defaultAccountsKeyMap(),
		loading: true,
		now:     now,
	}
}

// SetAccounts updates the account list
func (m *AccountsModel) SetAccounts(accs []*accounts.Account, active *accounts.Account) {
	m.accounts = accs
	m.active = active
	m.loading = false
	m.refreshItems()
}

func (m *AccountsModel) refreshItems() {
	now := m.now()
	items := make([]list.Item, len(m.accounts))
	for i, acc := range m.accounts {
		items[i] = accountItem{account: acc, active: acc == m.active, now: now}
	}
	m.list.SetItems(items)
}

// SelectedAccount returns the currently selected account
func (m *AccountsModel) SelectedAccount() *accounts.Account {
	if item, ok := m.list.SelectedItem().(accountItem); ok {
		return item.account
	}
	return nil
}

// SetSize updates the dimensions of the view
func (m *AccountsModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-4)
}

// Init implements tea.Model
func (m *AccountsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m *AccountsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case AccountsLoaded:
		if msg.Error != nil {
			m.loading = false
			m.note, m.noteErr = fmt.Sprintf("Could not load accounts: %v", msg.Error), true
			return m, nil
		}
		m.SetAccounts(msg.Accounts, msg.Active)
		return m, nil

	case StatusNote:
		m.note, m.noteErr = msg.Text, msg.Error
		m.refreshItems()
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		selected := m.SelectedAccount()
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return NavigateToLogin{} }
		case key.Matches(msg, m.keys.Refresh):
			if selected != nil {
				return m, func() tea.Msg { return RefreshAccount{Account: selected} }
			}
		case key.Matches(msg, m.keys.Delete):
			if selected != nil {
				return m, func() tea.Msg { return DeleteAccount{Account: selected} }
			}
		case key.Matches(msg, m.keys.Select):
			if selected != nil {
				return m, func() tea.Msg { return SetActiveAccount{Account: selected} }
			}
		case key.Matches(msg, m.keys.CreateProfile):
			if selected != nil {
				return m, func() tea.Msg { return NavigateToCreateProfile{Account: selected} }
			}
		case key.Matches(msg, m.keys.Skin):
			if selected != nil {
				return m, func() tea.Msg { return NavigateToSkin{Account: selected} }
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m *AccountsModel) View() string {
	if m.loading {
		return SubtleStyle.Render("Loading accounts...")
	}

	note := ""
	if m.note != "" {
		style := SuccessStyle
		if m.noteErr {
			style = ErrorStyle
		}
		note = style.Render(wrapText(m.note, m.width))
	}

	if len(m.accounts) == 0 {
		empty := SubtleStyle.Render("No accounts yet. Press 'a' to sign in with Microsoft.")
		help := HelpStyle.Render("\n\n" + buildHelpText([]string{"[a] add account", "[q] quit"}, m.width))
		return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), empty, note, help)
	}

	help := HelpStyle.Render(buildHelpText([]string{
		"[a] add", "[r] refresh", "[s] make active", "[n] create profile",
		"[k] skin", "[d] delete", "[q] quit",
	}, m.width))

	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), note, help)
}
