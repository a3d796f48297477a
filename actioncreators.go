package flux

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jpalmerr/flux/internal/metrics"
)

// ActionCreatorsConfig configures [ActionCreators].
type ActionCreatorsConfig struct {
	// Name is recorded as the Source of every dispatched action.
	Name string

	// Dispatcher receives the actions. When nil,
	// [Registry.CreateActionCreators] resolves the registry's default.
	Dispatcher Dispatcher

	// Logger receives dispatch events. Defaults to slog.Default().
	Logger *slog.Logger

	metrics *metrics.Metrics
}

// ActionCreators turns calls into actions on a [Dispatcher].
type ActionCreators struct {
	name       string
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewActionCreators creates [ActionCreators] from cfg.
// Returns an error if Dispatcher is nil.
func NewActionCreators(cfg ActionCreatorsConfig) (*ActionCreators, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("action creators dispatcher cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionCreators{
		name:       cfg.Name,
		dispatcher: cfg.Dispatcher,
		logger:     logger,
		metrics:    cfg.metrics,
	}, nil
}

// Name returns the configured name.
func (a *ActionCreators) Name() string {
	return a.name
}

// Dispatcher returns the dispatcher the action creators are wired to.
func (a *ActionCreators) Dispatcher() Dispatcher {
	return a.dispatcher
}

// Dispatch creates an action of actionType with args and dispatches it.
func (a *ActionCreators) Dispatch(actionType string, args ...any) error {
	if actionType == "" {
		return errors.New("action type cannot be empty")
	}
	action := NewAction(actionType, a.name, args...)
	err := a.dispatcher.Dispatch(action)
	a.metrics.Dispatch(actionType, err)
	if err != nil {
		a.logger.Warn("dispatch failed", "action", actionType, "source", a.name, "error", err.Error())
		return err
	}
	a.logger.Debug("action dispatched", "action", actionType, "action_id", action.ID, "source", a.name)
	return nil
}

// Run wraps fn in the STARTING/DONE/FAILED action lifecycle produced by
// [CreateConstants].
//
// It dispatches actionType+"_STARTING" with args, runs fn, then dispatches
// actionType+"_DONE" with args, or actionType+"_FAILED" with fn's error
// followed by args. It returns fn's error. If the _FAILED dispatch also
// fails, both errors are joined; errors.Is still matches fn's error.
func (a *ActionCreators) Run(ctx context.Context, actionType string, fn func(ctx context.Context) error, args ...any) error {
	if fn == nil {
		return errors.New("run function cannot be nil")
	}
	if err := a.Dispatch(actionType+SuffixStarting, args...); err != nil {
		return err
	}

	if runErr := fn(ctx); runErr != nil {
		failedArgs := append([]any{runErr}, args...)
		if err := a.Dispatch(actionType+SuffixFailed, failedArgs...); err != nil {
			return errors.Join(runErr, err)
		}
		return runErr
	}

	return a.Dispatch(actionType+SuffixDone, args...)
}
