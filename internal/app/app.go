// Package app contains the main Bubbletea application model.
// This is the central hub that manages app state and delegates to child views.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/skin"
	"github.com/quasar/mcauth/internal/ui"
)

// State represents the current view/screen of the application
type State int

const (
	StateHome State = iota
	StateLogin
	StateTask
	StatePrompt
)

// Model is the main application model
type Model struct {
	state  State
	width  int
	height int

	// Child models for each view
	home   *ui.AccountsModel
	login  *ui.LoginModel
	task   *ui.TaskModel
	prompt *ui.PromptModel

	// Core services
	manager *accounts.Manager
	env     *auth.Env
	logger  *slog.Logger

	// Running operation
	running    *auth.Task
	runningAcc *accounts.Account

	// held while a prompt or the task it started shows an account
	inUse *accounts.Usage

	keys keyMap

	ready bool
}

// keyMap defines the keybindings for the app
type keyMap struct {
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// New creates a new application model
func New(manager *accounts.Manager, env *auth.Env) *Model {
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Model{
		state:   StateHome,
		home:    ui.NewAccountsModel(env.Now),
		manager: manager,
		env:     env,
		logger:  logger,
		keys:    defaultKeyMap(),
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.home.Init(),
		m.loadAccounts(),
	)
}

func (m *Model) loadAccounts() tea.Cmd {
	return func() tea.Msg {
		err := m.manager.Load()
		return ui.AccountsLoaded{
			Accounts: m.manager.List(),
			Active:   m.manager.Active(),
			Error:    err,
		}
	}
}

func (m *Model) reloadAccounts() tea.Cmd {
	return func() tea.Msg {
		return ui.AccountsLoaded{
			Accounts: m.manager.List(),
			Active:   m.manager.Active(),
		}
	}
}

func note(text string, isErr bool) tea.Cmd {
	return func() tea.Msg { return ui.StatusNote{Text: text, Error: isErr} }
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Propagate size to child models
		m.home.SetSize(msg.Width, msg.Height)
		if m.login != nil {
			m.login.SetSize(msg.Width, msg.Height)
		}
		if m.task != nil {
			m.task.SetSize(msg.Width, msg.Height)
		}
		if m.prompt != nil {
			m.prompt.SetSize(msg.Width, msg.Height)
		}

	// Navigation messages
	case ui.NavigateToHome:
		if m.running != nil {
			return m, nil
		}
		m.state = StateHome
		m.login, m.task, m.prompt = nil, nil, nil
		m.releaseAccount()
		return m, m.reloadAccounts()

	case ui.NavigateToLogin:
		return m, m.startLogin()

	case ui.NavigateToCreateProfile:
		if msg.Account.Snapshot().HasProfile() {
			return m, note("This account already has a Minecraft profile.", true)
		}
		return m, m.openPrompt(ui.PromptProfileName, msg.Account)

	case ui.NavigateToSkin:
		if !msg.Account.Snapshot().HasProfile() {
			return m, note("Create a Minecraft profile before changing the skin.", true)
		}
		return m, m.openPrompt(ui.PromptSkinFile, msg.Account)

	// Account management
	case ui.RefreshAccount:
		task, err := msg.Account.Refresh(context.Background())
		return m, m.watch(msg.Account, task, err, "Refreshing account")

	case ui.DeleteAccount:
		name := msg.Account.Snapshot().DisplayName()
		switch err := m.manager.Remove(msg.Account.ID()); {
		case errors.Is(err, accounts.ErrInUse):
			return m, note(name+" is in use and cannot be removed.", true)
		case errors.Is(err, accounts.ErrBusy):
			return m, note(name+" is busy. Wait for it to finish first.", true)
		case err != nil:
			return m, note(err.Error(), true)
		}
		return m, tea.Batch(m.reloadAccounts(), note("Removed "+name+".", false))

	case ui.SetActiveAccount:
		if err := m.manager.SetActive(msg.Account.ID()); err != nil {
			return m, note(err.Error(), true)
		}
		return m, tea.Batch(m.reloadAccounts(), note(msg.Account.Snapshot().DisplayName()+" is now the active account.", false))

	case ui.PromptSubmitted:
		return m, m.submitPrompt(msg)

	case ui.CancelTask:
		if m.running != nil {
			m.running.Cancel()
		}
		return m, nil

	// Task updates - continue subscription
	case ui.DeviceCodeReceived:
		if m.login != nil {
			_, cmd := m.login.Update(msg)
			return m, cmd
		}
		return m, nil

	case ui.TaskStatusUpdate:
		cmd := m.forward(msg)
		return m, tea.Batch(cmd, m.waitForTaskStatus())

	case ui.TaskComplete:
		cmd := m.forward(msg)
		cmds := []tea.Cmd{cmd, m.reloadAccounts()}
		if m.login != nil && msg.Result.State == auth.TaskSucceeded {
			cmds = append(cmds, m.addLoggedIn(msg.Account))
		}
		m.running, m.runningAcc = nil, nil
		return m, tea.Batch(cmds...)

	// Global key handlers
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && m.state == StateHome {
			return m, tea.Quit
		}
		if msg.String() == "ctrl+c" {
			if m.running != nil {
				m.running.Cancel()
			}
			return m, tea.Quit
		}
	}

	// Delegate to current view
	var cmd tea.Cmd
	switch m.state {
	case StateHome:
		_, cmd = m.home.Update(msg)
	case StateLogin:
		if m.login != nil {
			_, cmd = m.login.Update(msg)
		}
	case StateTask:
		if m.task != nil {
			_, cmd = m.task.Update(msg)
		}
	case StatePrompt:
		if m.prompt != nil {
			_, cmd = m.prompt.Update(msg)
		}
	}
	return m, cmd
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.login != nil:
		_, cmd = m.login.Update(msg)
	case m.task != nil:
		_, cmd = m.task.Update(msg)
	}
	return cmd
}

func (m *Model) startLogin() tea.Cmd {
	acc := accounts.NewMSA(m.env)
	codes := make(chan *api.DeviceCodeResponse, 1)
	task, err := acc.LoginMSA(context.Background(), func(dc *api.DeviceCodeResponse) {
		select {
		case codes <- dc:
		default:
		}
	})
	if err != nil {
		return note(fmt.Sprintf("Could not start the sign in: %v", err), true)
	}

	m.state = StateLogin
	m.login = ui.NewLoginModel(acc)
	m.login.SetSize(m.width, m.height)
	m.running, m.runningAcc = task, acc
	return tea.Batch(m.login.Init(), m.waitForDeviceCode(codes), m.waitForTaskStatus())
}

func (m *Model) addLoggedIn(acc *accounts.Account) tea.Cmd {
	return func() tea.Msg {
		added, err := m.manager.Add(acc)
		if err != nil {
			m.logger.Error("failed to add account", "account", acc.ID(), "error", err)
			return ui.StatusNote{Text: fmt.Sprintf("Could not save the account: %v", err), Error: true}
		}
		return ui.StatusNote{Text: "Signed in as " + added.Snapshot().DisplayName() + "."}
	}
}

func (m *Model) openPrompt(kind ui.PromptKind, acc *accounts.Account) tea.Cmd {
	m.releaseAccount()
	m.inUse = acc.Acquire()
	m.state = StatePrompt
	m.prompt = ui.NewPromptModel(kind, acc)
	m.prompt.SetSize(m.width, m.height)
	return m.prompt.Init()
}

func (m *Model) submitPrompt(msg ui.PromptSubmitted) tea.Cmd {
	switch msg.Kind {
	case ui.PromptProfileName:
		task, err := msg.Account.CreateMinecraftProfile(context.Background(), msg.Value)
		return m.watch(msg.Account, task, err, "Creating profile")

	case ui.PromptSkinFile:
		fields := strings.Fields(msg.Value)
		model, err := skin.ParseModel("")
		if len(fields) > 1 {
			model, err = skin.ParseModel(fields[1])
		}
		if err != nil {
			m.prompt.SetError(err.Error())
			return nil
		}
		tex, err := skin.LoadFile(fields[0])
		if err != nil {
			m.prompt.SetError(fmt.Sprintf("Not a usable skin: %v", err))
			return nil
		}
		cape := msg.Account.Snapshot().Profile.CurrentCape
		task, err := msg.Account.SetSkin(context.Background(), model, tex.Data, cape)
		return m.watch(msg.Account, task, err, "Changing skin")
	}
	return nil
}

func (m *Model) releaseAccount() {
	if m.inUse != nil {
		m.inUse.Release()
		m.inUse = nil
	}
}

// watch switches to the progress view for a started task.
func (m *Model) watch(acc *accounts.Account, task *auth.Task, err error, title string) tea.Cmd {
	if err != nil {
		m.state = StateHome
		m.prompt = nil
		m.releaseAccount()
		if errors.Is(err, accounts.ErrBusy) {
			return note(acc.Snapshot().DisplayName()+" is busy. Wait for it to finish first.", true)
		}
		return note(err.Error(), true)
	}

	m.state = StateTask
	m.prompt = nil
	m.task = ui.NewTaskModel(acc, title)
	m.task.SetSize(m.width, m.height)
	m.running, m.runningAcc = task, acc
	return tea.Batch(m.task.Init(), m.waitForTaskStatus())
}

// waitForDeviceCode creates a command that waits for the sign in code
func (m *Model) waitForDeviceCode(codes <-chan *api.DeviceCodeResponse) tea.Cmd {
	task := m.running
	return func() tea.Msg {
		select {
		case dc := <-codes:
			return ui.DeviceCodeReceived{Code: dc}
		case <-task.Done():
			return nil
		}
	}
}

// waitForTaskStatus creates a command that waits for the next task status
func (m *Model) waitForTaskStatus() tea.Cmd {
	task, acc := m.running, m.runningAcc
	if task == nil {
		return nil
	}
	return func() tea.Msg {
		status, ok := <-task.Status()
		if !ok || status.Done {
			return ui.TaskComplete{Account: acc, Result: task.Wait()}
		}
		return ui.TaskStatusUpdate{Account: acc, Status: status}
	}
}

// View implements tea.Model
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	// Delegate to current view
	switch m.state {
	case StateHome:
		return m.home.View()
	case StateLogin:
		if m.login != nil {
			return m.login.View()
		}
	case StateTask:
		if m.task != nil {
			return m.task.View()
		}
	case StatePrompt:
		if m.prompt != nil {
			return m.prompt.View()
		}
	}

	return "Unknown state"
}
