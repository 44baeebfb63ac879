package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/quasar/mcauth/internal/core"
)

// TaskState is the lifecycle of a Task.
type TaskState int

const (
	TaskIdle TaskState = iota
	TaskRunning
	TaskSucceeded
	TaskFailedSoft
	TaskFailedHard
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailedSoft:
		return "failed (soft)"
	case TaskFailedHard:
		return "failed (hard)"
	case TaskCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("TaskState(%d)", int(s))
}

// Terminal reports whether the task has finished.
func (s TaskState) Terminal() bool {
	return s >= TaskSucceeded
}

// Result is the final outcome of a task. Message is the one the failing
// step produced, unchanged.
type Result struct {
	State   TaskState
	Kind    core.FailureKind
	Reason  core.FailureReason
	Message string
}

// Status is emitted on the task's status channel: once per step as the
// step starts, and once more when the task finishes.
type Status struct {
	Operation string
	Step      int // zero-based index of the running step
	Total     int
	Progress  float64 // 0.0 - 1.0
	Message   string
	Done      bool
	Result    Result
}

// Record is the live account record a task reads and writes.
type Record interface {
	// Snapshot returns a private copy of the record.
	Snapshot() *core.Account
	// Update applies fn to the record under the owner's lock.
	Update(fn func(*core.Account))
}

// ErrTaskStarted is returned when Start is called twice.
var ErrTaskStarted = errors.New("task already started")

// Task runs the steps of one account operation in order, stopping at the
// first failure. A task runs once; a new operation needs a new task.
type Task struct {
	name   string
	steps  []Step
	record Record
	logger *slog.Logger

	onFinish   func(Result)
	onProgress func(Status)
	status     chan Status
	done       chan struct{}

	mu              sync.Mutex
	state           TaskState
	cursor          int
	result          Result
	cancel          context.CancelFunc
	cancelRequested bool
}

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithLogger sets the task logger.
func WithLogger(l *slog.Logger) TaskOption {
	return func(t *Task) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithFinish registers fn to run once the task reaches a terminal state,
// before Done is closed and before the final status is sent.
func WithFinish(fn func(Result)) TaskOption {
	return func(t *Task) { t.onFinish = fn }
}

// WithProgress registers fn to see every status before it is sent.
func WithProgress(fn func(Status)) TaskOption {
	return func(t *Task) { t.onProgress = fn }
}

// NewTask creates an idle task named name (e.g. "refresh") over steps.
func NewTask(name string, record Record, steps []Step, opts ...TaskOption) *Task {
	t := &Task{
		name:   name,
		steps:  steps,
		record: record,
		logger: slog.New(slog.DiscardHandler),
		// One slot per step plus the final status, so sends never block
		// and never drop.
		status: make(chan Status, len(steps)+1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("operation", name)
	return t
}

// Name returns the operation name.
func (t *Task) Name() string {
	return t.name
}

// Status returns the channel of progress updates. It is closed after the
// final status.
func (t *Task) Status() <-chan Status {
	return t.status
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task has finished and returns its result.
func (t *Task) Wait() Result {
	<-t.done
	return t.Result()
}

// State returns the current lifecycle state.
func (t *Task) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the final result, or a zero Result while running.
func (t *Task) Result() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Describe returns what the task is doing right now.
func (t *Task) Describe() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TaskRunning || t.cursor >= len(t.steps) {
		return ""
	}
	return t.steps[t.cursor].Describe()
}

// Start runs the task in the background.
func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != TaskIdle {
		t.mu.Unlock()
		return ErrTaskStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.state = TaskRunning
	if t.cancelRequested {
		cancel()
	}
	t.mu.Unlock()

	go t.run(ctx)
	return nil
}

// Cancel stops the task. No further step starts, and the response of the
// step in flight is ignored. The task finishes with TaskCancelled unless
// the last step's result was already written.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelRequested = true
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Task) run(ctx context.Context) {
	defer t.cancel()

	total := len(t.steps)
	for i, step := range t.steps {
		if ctx.Err() != nil {
			t.finish(cancelledResult())
			return
		}

		t.mu.Lock()
		t.cursor = i
		t.mu.Unlock()

		desc := step.Describe()
		t.logger.Info("step started", "step", i+1, "of", total, "description", desc)
		t.emit(Status{
			Operation: t.name,
			Step:      i,
			Total:     total,
			Progress:  float64(i) / float64(total),
			Message:   desc,
		})

		// Perform runs on its own goroutine so a cancel does not wait for
		// the network.
		results := make(chan StepResult, 1)
		snapshot := t.record.Snapshot()
		go func() {
			results <- step.Perform(ctx, snapshot)
		}()

		var res StepResult
		select {
		case <-ctx.Done():
			t.finish(cancelledResult())
			return
		case res = <-results:
		}

		switch res.State {
		case StepWorking:
			if !t.apply(ctx, res) {
				t.finish(cancelledResult())
				return
			}
			t.logger.Debug("step finished", "step", i+1, "message", res.Message)
		case StepFailedHard:
			t.finish(Result{State: TaskFailedHard, Kind: res.Kind, Reason: res.Reason, Message: res.Message})
			return
		default:
			t.finish(Result{State: TaskFailedSoft, Kind: res.Kind, Reason: res.Reason, Message: res.Message})
			return
		}
	}

	t.finish(Result{State: TaskSucceeded, Message: "Finished " + t.name + "."})
}

// apply writes a step's result unless the task was cancelled. The check
// and the write happen under the record lock and t.mu, so a Cancel that
// has returned always wins.
func (t *Task) apply(ctx context.Context, res StepResult) bool {
	applied := false
	t.record.Update(func(a *core.Account) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.cancelRequested || ctx.Err() != nil {
			return
		}
		res.Apply(a)
		applied = true
	})
	return applied
}

func cancelledResult() Result {
	return Result{State: TaskCancelled, Kind: core.FailureCancelled, Message: "Cancelled."}
}

func (t *Task) finish(res Result) {
	t.mu.Lock()
	t.state = res.State
	t.result = res
	t.mu.Unlock()

	if res.State == TaskSucceeded {
		t.logger.Info("task succeeded")
	} else {
		t.logger.Warn("task stopped", "state", res.State, "kind", res.Kind, "reason", res.Reason, "message", res.Message)
	}

	if t.onFinish != nil {
		t.onFinish(res)
	}
	t.emit(Status{
		Operation: t.name,
		Step:      len(t.steps),
		Total:     len(t.steps),
		Progress:  1.0,
		Message:   res.Message,
		Done:      true,
		Result:    res,
	})
	close(t.status)
	close(t.done)
}

func (t *Task) emit(s Status) {
	if t.onProgress != nil {
		t.onProgress(s)
	}
	t.status <- s
}
