package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/core"
)

var viewNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testAccount(name string, expires time.Time) *accounts.Account {
	rec := core.NewMSAAccount()
	rec.Profile = core.Profile{ID: "id-" + name, Name: name}
	if !expires.IsZero() {
		rec.GameToken = core.Token{Value: "game", ExpiresAt: expires}
	}
	return accounts.New(rec, &auth.Env{Now: func() time.Time { return viewNow }})
}

func TestAccountItem_Description(t *testing.T) {
	online := accountItem{account: testAccount("Notch", viewNow.Add(3*time.Hour)), now: viewNow}
	if desc := online.Description(); !strings.Contains(desc, "Online") || !strings.Contains(desc, "from now") {
		t.Errorf("unexpected description: %q", desc)
	}

	expired := accountItem{account: testAccount("Jeb", viewNow.Add(-2*time.Hour)), now: viewNow}
	if desc := expired.Description(); !strings.Contains(desc, "Expired") || !strings.Contains(desc, "ago") {
		t.Errorf("unexpected description: %q", desc)
	}

	rec := core.NewMSAAccount()
	rec.SetError(core.FailureHardTerminal, core.ReasonUnderage, "Set up a family.")
	blocked := accountItem{account: accounts.New(rec, &auth.Env{}), now: viewNow}
	if desc := blocked.Description(); !strings.Contains(desc, "Requires action") || !strings.Contains(desc, "Set up a family.") {
		t.Errorf("unexpected description: %q", desc)
	}
}

func TestAccountItem_ActiveMarker(t *testing.T) {
	item := accountItem{account: testAccount("Notch", viewNow), active: true}
	if !strings.HasSuffix(item.Title(), "★") {
		t.Errorf("active account not marked: %q", item.Title())
	}
}

func TestAccountsModel_Keys(t *testing.T) {
	m := NewAccountsModel(func() time.Time { return viewNow })
	m.SetSize(80, 24)
	acc := testAccount("Notch", viewNow.Add(time.Hour))
	m.SetAccounts([]*accounts.Account{acc}, acc)

	tests := []struct {
		key  string
		want any
	}{
		{"a", NavigateToLogin{}},
		{"r", RefreshAccount{Account: acc}},
		{"d", DeleteAccount{Account: acc}},
		{"s", SetActiveAccount{Account: acc}},
		{"n", NavigateToCreateProfile{Account: acc}},
		{"k", NavigateToSkin{Account: acc}},
	}
	for _, tt := range tests {
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(tt.key)})
		if cmd == nil {
			t.Fatalf("key %q produced no command", tt.key)
		}
		if got := cmd(); got != tt.want {
			t.Errorf("key %q: got %#v, want %#v", tt.key, got, tt.want)
		}
	}
}

func TestAccountsModel_EmptyView(t *testing.T) {
	m := NewAccountsModel(nil)
	m.SetSize(80, 24)
	m.SetAccounts(nil, nil)

	if !strings.Contains(m.View(), "No accounts yet") {
		t.Error("empty list should explain how to add an account")
	}
}

func TestTaskModel_Progress(t *testing.T) {
	m := NewTaskModel(testAccount("Notch", time.Time{}), "Refreshing")
	m.SetSize(80, 24)

	m.Update(TaskStatusUpdate{Status: auth.Status{Step: 0, Total: 2, Message: "Refreshing Microsoft account token."}})
	m.Update(TaskStatusUpdate{Status: auth.Status{Step: 1, Total: 2, Progress: 0.5, Message: "Logging in as an Xbox user."}})

	if m.steps[0].status != "done" || m.steps[1].status != "running" {
		t.Fatalf("unexpected steps: %+v", m.steps)
	}

	m.Update(TaskComplete{Result: auth.Result{State: auth.TaskFailedHard, Message: "This Microsoft account is underaged."}})
	if !m.Done() {
		t.Fatal("task should be done")
	}
	if m.steps[1].status != "error" {
		t.Errorf("failing step not marked: %+v", m.steps[1])
	}
	if !strings.Contains(m.View(), "underaged") {
		t.Error("failure message should be shown verbatim")
	}
}

func TestTaskModel_EscCancelsWhileRunning(t *testing.T) {
	m := NewTaskModel(testAccount("Notch", time.Time{}), "Refreshing")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := cmd().(CancelTask); !ok {
		t.Error("esc while running should cancel")
	}

	m.Update(TaskComplete{Result: auth.Result{State: auth.TaskCancelled}})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := cmd().(NavigateToHome); !ok {
		t.Error("esc when done should go home")
	}
}

func TestLoginModel_DeviceCode(t *testing.T) {
	m := NewLoginModel(testAccount("Notch", time.Time{}))
	var copied, opened string
	m.clipboard = func(s string) error { copied = s; return nil }
	m.openURL = func(s string) error { opened = s; return nil }
	m.SetSize(80, 24)

	m.Update(TaskStatusUpdate{Status: auth.Status{Total: 8, Message: "Logging in with Microsoft account."}})
	m.Update(DeviceCodeReceived{Code: &api.DeviceCodeResponse{UserCode: "ABCD-EFGH", VerificationURI: "https://microsoft.com/link"}})

	if copied != "ABCD-EFGH" {
		t.Errorf("code not copied: %q", copied)
	}
	view := m.View()
	if !strings.Contains(view, "ABCD-EFGH") || !strings.Contains(view, "https://microsoft.com/link") {
		t.Errorf("device code not shown: %q", view)
	}

	m.Update(openBrowserMsg{})
	if opened != "https://microsoft.com/link" {
		t.Errorf("browser not opened: %q", opened)
	}

	m.Update(TaskStatusUpdate{Status: auth.Status{Step: 1, Total: 8, Message: "Logging in as an Xbox user."}})
	if strings.Contains(m.View(), "ABCD-EFGH") {
		t.Error("device code should be hidden once the sign in went through")
	}
}

func TestPromptModel_Submit(t *testing.T) {
	acc := testAccount("Notch", time.Time{})
	m := NewPromptModel(PromptProfileName, acc)

	for _, r := range "Steve" {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	got, ok := cmd().(PromptSubmitted)
	if !ok {
		t.Fatal("enter should submit")
	}
	if got.Value != "Steve" || got.Account != acc || got.Kind != PromptProfileName {
		t.Errorf("unexpected submit: %+v", got)
	}
}
