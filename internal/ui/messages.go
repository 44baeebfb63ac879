// Package ui provides TUI view messages shared between components.
package ui

import (
	"github.com/quasar/mcauth/internal/accounts"
	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/auth"
)

// Navigation messages
type (
	// NavigateToHome returns to the account list
	NavigateToHome struct{}

	// NavigateToLogin starts a Microsoft sign in for a new account
	NavigateToLogin struct{}

	// NavigateToCreateProfile asks for a profile name
	NavigateToCreateProfile struct {
		Account *accounts.Account
	}

	// NavigateToSkin asks for a skin file
	NavigateToSkin struct {
		Account *accounts.Account
	}
)

// Action messages
type (
	// AccountsLoaded is sent when accounts are read from disk
	AccountsLoaded struct {
		Accounts []*accounts.Account
		Active   *accounts.Account
		Error    error
	}

	// RefreshAccount starts a token refresh
	RefreshAccount struct {
		Account *accounts.Account
	}

	// DeleteAccount requests account removal
	DeleteAccount struct {
		Account *accounts.Account
	}

	// SetActiveAccount makes the account the default one
	SetActiveAccount struct {
		Account *accounts.Account
	}

	// CancelTask stops the running operation
	CancelTask struct{}

	// PromptSubmitted carries the text typed into a prompt
	PromptSubmitted struct {
		Kind    PromptKind
		Account *accounts.Account
		Value   string
	}

	// StatusNote shows a one-line message on the account list
	StatusNote struct {
		Text  string
		Error bool
	}
)

// Task messages
type (
	// DeviceCodeReceived is sent once Microsoft hands out a sign in code
	DeviceCodeReceived struct {
		Code *api.DeviceCodeResponse
	}

	// TaskStatusUpdate is sent for every status of a running operation
	TaskStatusUpdate struct {
		Account *accounts.Account
		Status  auth.Status
	}

	// TaskComplete is sent when the operation finished
	TaskComplete struct {
		Account *accounts.Account
		Result  auth.Result
	}
)
