// Package action runs named handlers against a session and records every run
// in actions.jsonl.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/danielwarnersmith/trace/internal/jsonl"
	"github.com/danielwarnersmith/trace/internal/session"
)

// ErrUnknownAction is recorded and returned when no handler is registered
// for an action id.
var ErrUnknownAction = errors.New("unknown action")

// Handler performs one action against a session.
type Handler interface {
	Run(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error)

func (f HandlerFunc) Run(ctx context.Context, d *session.Dir, inputs map[string]string) (map[string]any, error) {
	return f(ctx, d, inputs)
}

// Registry maps action ids to handlers. Callers construct and own it.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds id to h, replacing any previous handler.
func (r *Registry) Register(id string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[id] = h
}

// Lookup returns the handler for id.
func (r *Registry) Lookup(id string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[id]
	return h, ok
}

// IDs lists registered action ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.handlers))
	for id := range r.handlers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Result is the final state of one run.
type Result struct {
	ID      string
	Action  string
	Status  session.ActionStatus
	Outputs map[string]any
	Error   string
}

// Runner executes actions from a registry.
type Runner struct {
	Registry *Registry
	Logger   *slog.Logger
}

// NewRunner returns a Runner over reg. A nil logger uses slog.Default.
func NewRunner(reg *Registry, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Registry: reg, Logger: logger}
}

// Run appends a started line, runs the handler and appends a terminal line
// with the same id. A failed run, including an unknown action id, returns
// its Result together with a non-nil error.
func (r *Runner) Run(ctx context.Context, d *session.Dir, actionID string, inputs map[string]string) (Result, error) {
	if _, err := d.Doc(); err != nil {
		return Result{}, err
	}
	if len(inputs) == 0 {
		inputs = nil
	}

	run := session.ActionRun{
		ID:        d.NewID(),
		Action:    actionID,
		CreatedAt: session.Timestamp(d.Now()),
		Status:    session.ActionStarted,
		Inputs:    inputs,
	}
	if err := d.AppendActionRun(run); err != nil {
		return Result{}, fmt.Errorf("failed to record action start: %w", err)
	}
	r.Logger.Debug("action started", "action", actionID, "run", run.ID)

	var (
		outputs map[string]any
		runErr  error
	)
	if h, ok := r.Registry.Lookup(actionID); !ok {
		runErr = fmt.Errorf("%w: %s", ErrUnknownAction, actionID)
	} else {
		outputs, runErr = runHandler(ctx, h, d, inputs)
	}

	final := run
	if runErr != nil {
		final.Status = session.ActionFailed
		final.Error = runErr.Error()
	} else {
		final.Status = session.ActionSucceeded
		if len(outputs) > 0 {
			final.Outputs = outputs
		}
	}
	if err := d.AppendActionRun(final); err != nil {
		return Result{}, errors.Join(runErr, fmt.Errorf("failed to record action result: %w", err))
	}
	r.Logger.Debug("action finished", "action", actionID, "run", run.ID, "status", final.Status)

	res := Result{ID: run.ID, Action: actionID, Status: final.Status, Outputs: final.Outputs, Error: final.Error}
	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

// ErrPanic wraps a panic raised inside a handler.
var ErrPanic = errors.New("action panicked")

func runHandler(ctx context.Context, h Handler, d *session.Dir, inputs map[string]string) (outputs map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			outputs, err = nil, fmt.Errorf("%w: %v", ErrPanic, p)
		}
	}()
	return h.Run(ctx, d, inputs)
}

// Runs returns the action runs of a session folded by id, so each run appears
// once with its latest status.
func Runs(d *session.Dir) ([]session.ActionRun, error) {
	runs, _, err := jsonl.ReadAll[session.ActionRun](d.ActionsPath())
	if err != nil {
		return nil, err
	}
	return jsonl.Fold(runs, session.ActionRunKey), nil
}
