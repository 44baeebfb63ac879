// Package auth implements the account authentication pipeline: the steps
// that exchange tokens with Microsoft, Xbox Live and Minecraft services,
// the classifier that turns provider errors into a small taxonomy, and the
// task that runs a list of steps for one account operation.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/core"
)

// StepState is the outcome a step reports.
type StepState int

const (
	// StepWorking means the step succeeded and the task continues.
	StepWorking StepState = iota
	// StepFailedSoft stops the task; tokens obtained so far stay valid.
	StepFailedSoft
	// StepFailedHard stops the task; the provider's tokens are no longer
	// usable.
	StepFailedHard
)

func (s StepState) String() string {
	switch s {
	case StepWorking:
		return "working"
	case StepFailedSoft:
		return "failed (soft)"
	case StepFailedHard:
		return "failed (hard)"
	}
	return fmt.Sprintf("StepState(%d)", int(s))
}

// StepResult is what one Perform call reports.
type StepResult struct {
	State   StepState
	Kind    core.FailureKind
	Reason  core.FailureReason
	Message string

	// apply writes the step's result into the live record. It runs only
	// for StepWorking and only if the task was not cancelled meanwhile.
	apply func(*core.Account)
}

// Apply writes the result into acc. It is a no-op for failed steps.
func (r StepResult) Apply(acc *core.Account) {
	if r.State == StepWorking && r.apply != nil {
		r.apply(acc)
	}
}

func working(msg string, apply func(*core.Account)) StepResult {
	return StepResult{State: StepWorking, Message: msg, apply: apply}
}

func failed(c Classification) StepResult {
	state := StepFailedSoft
	if c.Kind == core.FailureHardTerminal {
		state = StepFailedHard
	}
	return StepResult{State: state, Kind: c.Kind, Reason: c.Reason, Message: c.Message}
}

func failedSoft(format string, args ...any) StepResult {
	return failed(Classification{Kind: core.FailureSoftTerminal, Message: fmt.Sprintf(format, args...)})
}

// Step is one network exchange of the pipeline.
//
// Perform receives a snapshot of the record and must not modify it; the
// write happens through the returned result once the task accepts it.
// Perform never panics or returns a Go error: every failure is reported
// through the result.
type Step interface {
	Describe() string
	Perform(ctx context.Context, acc *core.Account) StepResult
}

// MSA is the Microsoft OAuth collaborator. *api.MSAClient implements it.
type MSA interface {
	RequestDeviceCode(ctx context.Context) (*api.DeviceCodeResponse, error)
	PollForToken(ctx context.Context, dc *api.DeviceCodeResponse) (*api.MSATokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*api.MSATokenResponse, error)
}

// Env holds the collaborators every step needs.
type Env struct {
	Transport *api.Client
	MSA       MSA
	Endpoints api.Endpoints
	Logger    *slog.Logger

	// Now is the clock used for token expiry. Defaults to time.Now.
	Now func() time.Time

	// DevicePrompt is handed the device code during a login so the user
	// can be told where to enter it.
	DevicePrompt func(*api.DeviceCodeResponse)
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
