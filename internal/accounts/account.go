// Package accounts holds the live accounts: the record each one owns, the
// operation running on it, who is using it, and the file they are saved
// to.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/quasar/mcauth/internal/api"
	"github.com/quasar/mcauth/internal/auth"
	"github.com/quasar/mcauth/internal/core"
)

var (
	// ErrBusy is returned when an operation is already running on the
	// account.
	ErrBusy = errors.New("account is busy")
	// ErrInUse is returned when the account is in use and cannot be
	// replaced or removed.
	ErrInUse = errors.New("account is in use")
	// ErrNotFound is returned for an unknown account id.
	ErrNotFound = errors.New("account not found")
)

// Observer is told about changes to an account. Calls are made outside
// the account's lock, from whichever goroutine caused the change.
type Observer interface {
	// AccountChanged fires once per finished operation and after the
	// record is replaced.
	AccountChanged(a *Account)
	// ActivityChanged fires when the account goes from unused to used
	// or back.
	ActivityChanged(a *Account, active bool)
	// Progress fires for every status of a running operation.
	Progress(a *Account, s auth.Status)
	// Finished fires once per operation, before AccountChanged.
	Finished(a *Account, r auth.Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are
// ignored.
type ObserverFuncs struct {
	OnChanged  func(a *Account)
	OnActivity func(a *Account, active bool)
	OnProgress func(a *Account, s auth.Status)
	OnFinished func(a *Account, r auth.Result)
}

func (f ObserverFuncs) AccountChanged(a *Account) {
	if f.OnChanged != nil {
		f.OnChanged(a)
	}
}

func (f ObserverFuncs) ActivityChanged(a *Account, active bool) {
	if f.OnActivity != nil {
		f.OnActivity(a, active)
	}
}

func (f ObserverFuncs) Progress(a *Account, s auth.Status) {
	if f.OnProgress != nil {
		f.OnProgress(a, s)
	}
}

func (f ObserverFuncs) Finished(a *Account, r auth.Result) {
	if f.OnFinished != nil {
		f.OnFinished(a, r)
	}
}

// Account is one user-visible login. It owns its record exclusively and
// runs at most one operation at a time.
type Account struct {
	env    *auth.Env
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	data      *core.Account
	task      *auth.Task
	uses      int
	observers []Observer
}

// New wraps an existing record. The record is copied.
func New(rec *core.Account, env *auth.Env) *Account {
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := env.Now
	if now == nil {
		now = time.Now
	}
	return &Account{
		env:    env,
		logger: logger.With("account", rec.InternalID),
		now:    now,
		data:   rec.Clone(),
	}
}

// NewMSA creates a blank Microsoft account, ready for LoginMSA.
func NewMSA(env *auth.Env) *Account {
	return New(core.NewMSAAccount(), env)
}

// ID returns the internal id, which never changes.
func (a *Account) ID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.InternalID
}

// Snapshot returns a copy of the record.
func (a *Account) Snapshot() *core.Account {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.Clone()
}

// State derives the account state from the record.
func (a *Account) State() core.AccountState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.State(a.now())
}

// ShouldRefresh reports whether the tokens are due for renewal.
func (a *Account) ShouldRefresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.data.ShouldRefresh(a.now())
}

// Observe registers o for notifications.
func (a *Account) Observe(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// LoginMSA signs in from scratch. prompt receives the device code to show
// to the user.
func (a *Account) LoginMSA(ctx context.Context, prompt func(*api.DeviceCodeResponse)) (*auth.Task, error) {
	env := *a.env
	env.DevicePrompt = prompt
	return a.start(ctx, auth.OpLogin, auth.LoginSteps(&env))
}

// Refresh renews every token from the stored refresh token.
func (a *Account) Refresh(ctx context.Context) (*auth.Task, error) {
	return a.start(ctx, auth.OpRefresh, auth.RefreshSteps(a.env))
}

// CreateMinecraftProfile claims the profile name for an account that owns
// the game but has no profile yet.
func (a *Account) CreateMinecraftProfile(ctx context.Context, name string) (*auth.Task, error) {
	return a.start(ctx, auth.OpCreateProfile, auth.CreateProfileSteps(a.env, name))
}

// SetSkin uploads a validated skin texture and selects a cape. An empty
// capeID hides the cape.
func (a *Account) SetSkin(ctx context.Context, model core.SkinModel, texture []byte, capeID string) (*auth.Task, error) {
	return a.start(ctx, auth.OpSetSkin, auth.SetSkinSteps(a.env, model, texture, capeID))
}

func (a *Account) start(ctx context.Context, name string, steps []auth.Step) (*auth.Task, error) {
	a.mu.Lock()
	if a.task != nil {
		a.mu.Unlock()
		a.logger.Info("operation rejected, account busy", "operation", name)
		return nil, ErrBusy
	}

	var task *auth.Task
	task = auth.NewTask(name, record{a}, steps,
		auth.WithLogger(a.logger),
		auth.WithProgress(func(s auth.Status) { a.progress(s) }),
		auth.WithFinish(func(r auth.Result) { a.finished(task, r) }),
	)
	a.task = task
	a.mu.Unlock()

	if err := task.Start(ctx); err != nil {
		a.mu.Lock()
		a.task = nil
		a.mu.Unlock()
		return nil, err
	}
	return task, nil
}

// CurrentTask returns the running operation, or nil.
func (a *Account) CurrentTask() *auth.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.task
}

// Busy reports whether an operation is running.
func (a *Account) Busy() bool {
	return a.CurrentTask() != nil
}

// Cancel stops the running operation, if any.
func (a *Account) Cancel() {
	if t := a.CurrentTask(); t != nil {
		t.Cancel()
	}
}

func (a *Account) progress(s auth.Status) {
	for _, o := range a.observerList() {
		o.Progress(a, s)
	}
}

func (a *Account) finished(task *auth.Task, r auth.Result) {
	a.mu.Lock()
	if a.task == task {
		a.task = nil
	}
	switch r.State {
	case auth.TaskSucceeded:
		a.data.SetError(core.FailureNone, "", "")
	case auth.TaskCancelled:
		// The last real outcome still describes the account.
	default:
		a.data.SetError(r.Kind, r.Reason, r.Message)
	}
	observers := slices.Clone(a.observers)
	a.mu.Unlock()

	for _, o := range observers {
		o.Finished(a, r)
	}
	for _, o := range observers {
		o.AccountChanged(a)
	}
}

func (a *Account) observerList() []Observer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.observers)
}

// Usage marks the account as relied upon until Release is called.
type Usage struct {
	a    *Account
	once sync.Once
}

// Release ends the usage. Calling it more than once is harmless.
func (u *Usage) Release() {
	u.once.Do(u.a.release)
}

// Acquire marks the account as in use. While any usage is held the record
// cannot be replaced and the account cannot be removed.
//
//	use := acc.Acquire()
//	defer use.Release()
func (a *Account) Acquire() *Usage {
	a.mu.Lock()
	a.uses++
	first := a.uses == 1
	a.mu.Unlock()

	if first {
		a.activityChanged(true)
	}
	return &Usage{a: a}
}

func (a *Account) release() {
	a.mu.Lock()
	if a.uses == 0 {
		a.mu.Unlock()
		return
	}
	a.uses--
	last := a.uses == 0
	a.mu.Unlock()

	if last {
		a.activityChanged(false)
	}
}

func (a *Account) activityChanged(active bool) {
	for _, o := range a.observerList() {
		o.ActivityChanged(a, active)
	}
}

// IsActive reports whether any usage is held.
func (a *Account) IsActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uses > 0
}

// ReplaceWith swaps in a new record, keeping this account's internal id.
// It fails while the account is in use or busy.
func (a *Account) ReplaceWith(rec *core.Account) error {
	a.mu.Lock()
	switch {
	case a.uses > 0:
		a.mu.Unlock()
		return ErrInUse
	case a.task != nil:
		a.mu.Unlock()
		return ErrBusy
	}
	id := a.data.InternalID
	a.data = rec.Clone()
	a.data.InternalID = id
	observers := slices.Clone(a.observers)
	a.mu.Unlock()

	a.logger.Info("account record replaced")
	for _, o := range observers {
		o.AccountChanged(a)
	}
	return nil
}

// record gives a task access to the account's data under its lock.
type record struct {
	a *Account
}

func (r record) Snapshot() *core.Account {
	return r.a.Snapshot()
}

func (r record) Update(fn func(*core.Account)) {
	r.a.mu.Lock()
	defer r.a.mu.Unlock()
	fn(r.a.data)
}
