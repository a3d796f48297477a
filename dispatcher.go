package flux

import (
	"bytes"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action is a message broadcast through a [Dispatcher].
type Action struct {
	// ID uniquely identifies this dispatch.
	ID string `json:"id"`

	// Type is the action type, usually a value from [CreateConstants].
	Type string `json:"type"`

	// Arguments are the action payload.
	Arguments []any `json:"arguments,omitempty"`

	// Source names the component that dispatched the action.
	Source string `json:"source,omitempty"`

	// Timestamp is when the action was created.
	Timestamp time.Time `json:"timestamp"`
}

// NewAction creates an [Action] with a fresh ID and the current time.
func NewAction(actionType, source string, args ...any) Action {
	return Action{
		ID:        uuid.NewString(),
		Type:      actionType,
		Arguments: args,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// Callback receives every action dispatched through a [Dispatcher].
type Callback func(Action)

// Dispatcher is the shared channel through which actions reach stores.
//
// How callbacks decide which actions they care about is up to the callback.
// Implementations must be safe for concurrent use.
type Dispatcher interface {
	// ID identifies the dispatcher instance.
	ID() string

	// Register adds a callback and returns a token for Unregister.
	Register(cb Callback) string

	// Unregister removes the callback registered under token.
	// Unknown tokens are ignored.
	Unregister(token string)

	// Dispatch delivers the action to every registered callback before
	// returning. Dispatching from inside a callback fails with
	// [ErrDispatchInProgress].
	Dispatch(action Action) error
}

// DispatcherProvider supplies the default [Dispatcher] for components created
// without an explicit one. Current is evaluated on every create call.
type DispatcherProvider interface {
	Current() Dispatcher
}

// DispatcherProviderFunc adapts a function to [DispatcherProvider].
type DispatcherProviderFunc func() Dispatcher

// Current calls f.
func (f DispatcherProviderFunc) Current() Dispatcher {
	return f()
}

// staticProvider always returns the same dispatcher.
type staticProvider struct {
	d Dispatcher
}

func (p staticProvider) Current() Dispatcher { return p.d }

// LocalDispatcher is the in-process [Dispatcher] returned by [NewDispatcher].
//
// Dispatch is synchronous: callbacks run in registration order on the
// dispatching goroutine. Only one dispatch is in progress at a time; other
// goroutines wait their turn. A callback must not block on another goroutine
// that dispatches through the same dispatcher.
type LocalDispatcher struct {
	id     string
	logger *slog.Logger

	mu        sync.RWMutex
	callbacks map[string]Callback
	order     []string

	// dispatchMu serializes dispatches. owner is the goroutine running the
	// current dispatch (0 when idle) and is guarded by ownerMu.
	dispatchMu sync.Mutex
	ownerMu    sync.Mutex
	owner      uint64
}

// NewDispatcher creates a [LocalDispatcher]. A nil logger means slog.Default().
func NewDispatcher(logger *slog.Logger) *LocalDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDispatcher{
		id:        uuid.NewString(),
		logger:    logger,
		callbacks: make(map[string]Callback),
	}
}

// ID returns the dispatcher's identifier.
func (d *LocalDispatcher) ID() string {
	return d.id
}

// Register adds cb and returns its token. A nil callback is ignored and an
// empty token is returned.
func (d *LocalDispatcher) Register(cb Callback) string {
	if cb == nil {
		return ""
	}
	token := uuid.NewString()

	d.mu.Lock()
	d.callbacks[token] = cb
	d.order = append(d.order, token)
	d.mu.Unlock()

	return token
}

// Unregister removes the callback registered under token.
// Safe to call multiple times or with an unknown token.
func (d *LocalDispatcher) Unregister(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.callbacks[token]; !ok {
		return
	}
	delete(d.callbacks, token)
	for i, t := range d.order {
		if t == token {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Dispatch delivers action to every registered callback.
//
// Dispatches from different goroutines are serialized: a call waits for the
// dispatch in progress to finish. A call made from inside a callback (on the
// dispatching goroutine) returns [ErrDispatchInProgress] instead.
//
// Actions without an ID or timestamp have them filled in. A panicking
// callback is logged with a correlation ID and reported as an error after
// the remaining callbacks have run.
func (d *LocalDispatcher) Dispatch(action Action) error {
	gid := goroutineID()

	d.ownerMu.Lock()
	nested := gid != 0 && d.owner == gid
	d.ownerMu.Unlock()
	if nested {
		return fmt.Errorf("%w: %s", ErrDispatchInProgress, action.Type)
	}

	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.setOwner(gid)
	defer d.setOwner(0)

	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	// snapshot so callbacks may register/unregister during dispatch
	d.mu.RLock()
	callbacks := make([]Callback, 0, len(d.order))
	for _, token := range d.order {
		callbacks = append(callbacks, d.callbacks[token])
	}
	d.mu.RUnlock()

	var firstErr error
	for _, cb := range callbacks {
		if err := d.invoke(cb, action); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *LocalDispatcher) setOwner(gid uint64) {
	d.ownerMu.Lock()
	d.owner = gid
	d.ownerMu.Unlock()
}

// goroutineID returns the runtime id of the calling goroutine, parsed from
// the "goroutine N [" header of its stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// invoke calls cb with panic recovery.
func (d *LocalDispatcher) invoke(cb Callback, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			d.logger.Error("dispatcher callback panicked",
				"correlation_id", correlationID,
				"action", action.Type,
				"panic", fmt.Sprintf("%v", r),
			)
			err = fmt.Errorf("callback panic handling %s (correlation_id: %s)", action.Type, correlationID)
		}
	}()
	cb(action)
	return nil
}
