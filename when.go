package flux

// Handlers is the typed set of callbacks passed to [When].
//
// Each field handles one [Status]. A nil field is a missing handler: [When]
// returns a [*MissingHandlerError] if the query is in that state.
type Handlers[T, R any] struct {
	Pending func() R
	Done    func(result T) R
	Failed  func(err error) R
}

// HandlerFunc is the dynamic handler signature used by [HandlerMap].
//
// A pending handler is called with no arguments, a failed handler with the
// query's error and a done handler with the query's result.
type HandlerFunc func(args ...any) any

// HandlerMap maps lower-case status names ("pending", "done", "failed") to
// handlers. Keys must be lower case; other spellings never match.
type HandlerMap map[string]HandlerFunc

// When invokes the handler matching the query's current status and returns
// its value unchanged.
//
// The handler runs synchronously on the caller's goroutine. If the handler
// for the current status is nil, no handler runs and a [*MissingHandlerError]
// is returned.
//
// Example:
//
//	label, err := flux.When(q, flux.Handlers[User, string]{
//	    Pending: func() string { return "loading" },
//	    Done:    func(u User) string { return u.Name },
//	    Failed:  func(err error) string { return err.Error() },
//	})
func When[T, R any](q *Query[T], h Handlers[T, R]) (R, error) {
	var zero R
	if q == nil {
		return zero, ErrNilQuery
	}

	status, result, err := q.snapshot()
	switch status {
	case StatusPending:
		if h.Pending == nil {
			return zero, &MissingHandlerError{Status: status}
		}
		return h.Pending(), nil
	case StatusFailed:
		if h.Failed == nil {
			return zero, &MissingHandlerError{Status: status}
		}
		return h.Failed(err), nil
	case StatusDone:
		if h.Done == nil {
			return zero, &MissingHandlerError{Status: status}
		}
		return h.Done(result), nil
	default:
		return zero, &MissingHandlerError{Status: status}
	}
}

// Match is the dynamic form of [When] for handler sets assembled at runtime.
//
// The handler is looked up by the lower-case form of the query's status. A
// nil map behaves like an empty one.
func Match[T any](q *Query[T], handlers HandlerMap) (any, error) {
	if q == nil {
		return nil, ErrNilQuery
	}

	status, result, err := q.snapshot()
	handler, ok := handlers[status.Key()]
	if !ok || handler == nil {
		return nil, &MissingHandlerError{Status: status}
	}

	switch status {
	case StatusPending:
		return handler(), nil
	case StatusFailed:
		return handler(err), nil
	default:
		return handler(result), nil
	}
}
