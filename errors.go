package flux

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingHandler is matched by every [*MissingHandlerError].
	ErrMissingHandler = errors.New("missing handler for status")

	// ErrNilQuery is returned by [When] and [Match] when called with a nil query.
	ErrNilQuery = errors.New("query cannot be nil")

	// ErrUnknownFailure is stored in a FAILED query that was settled without an error.
	ErrUnknownFailure = errors.New("query failed without an error")

	// ErrDispatchInProgress is returned when Dispatch is called from inside a
	// dispatcher callback.
	ErrDispatchInProgress = errors.New("cannot dispatch in the middle of a dispatch")

	// ErrInvalidFetch is stored in the query returned by [Fetch] when the
	// fetch options are incomplete.
	ErrInvalidFetch = errors.New("fetch requires an id")

	// ErrNotFound is stored in the query returned by [Fetch] when the value
	// is not available locally and no remote fetch is configured.
	ErrNotFound = errors.New("not found")
)

// MissingHandlerError reports that the handlers supplied to [When] or [Match]
// have no entry for the query's current status.
//
// It indicates a programming error in the caller and is never retried.
type MissingHandlerError struct {
	Status Status
}

func (e *MissingHandlerError) Error() string {
	return fmt.Sprintf("could not find a %s handler", e.Status)
}

// Is makes errors.Is(err, ErrMissingHandler) succeed.
func (e *MissingHandlerError) Is(target error) bool {
	return target == ErrMissingHandler
}
