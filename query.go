package flux

import (
	"sync"

	"github.com/google/uuid"
)

// Query represents the outcome of one asynchronous read.
//
// A Query is in exactly one of three states: [StatusPending], [StatusDone]
// or [StatusFailed]. The result is only meaningful when the status is DONE
// and the error is only non-nil when the status is FAILED.
//
// Queries built with [DoneQuery] or [FailedQuery] are immutable. A query
// built with [PendingQuery] is settled exactly once by the [Store] that owns
// it; status and payload change together under a lock, so readers never
// observe a partially settled query. All methods are safe for concurrent use.
type Query[T any] struct {
	id string

	mu      sync.RWMutex
	status  Status
	result  T
	err     error
	settled chan struct{}
}

// PendingQuery creates a query in the [StatusPending] state.
func PendingQuery[T any](id string) *Query[T] {
	return &Query[T]{
		id:      queryID(id),
		status:  StatusPending,
		settled: make(chan struct{}),
	}
}

// DoneQuery creates a settled query holding result.
func DoneQuery[T any](id string, result T) *Query[T] {
	q := &Query[T]{
		id:      queryID(id),
		status:  StatusDone,
		result:  result,
		settled: make(chan struct{}),
	}
	close(q.settled)
	return q
}

// FailedQuery creates a settled query holding err.
//
// A nil err is replaced with [ErrUnknownFailure] so that a FAILED query
// always carries an error.
func FailedQuery[T any](id string, err error) *Query[T] {
	if err == nil {
		err = ErrUnknownFailure
	}
	q := &Query[T]{
		id:      queryID(id),
		status:  StatusFailed,
		err:     err,
		settled: make(chan struct{}),
	}
	close(q.settled)
	return q
}

// queryID returns id, or a random identifier when id is empty.
func queryID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// ID returns the identifier of the read this query represents.
func (q *Query[T]) ID() string {
	return q.id
}

// Status returns the current status.
func (q *Query[T]) Status() Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

// Result returns the result of a DONE query, or the zero value otherwise.
func (q *Query[T]) Result() T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.result
}

// Err returns the error of a FAILED query, or nil otherwise.
func (q *Query[T]) Err() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.err
}

// Settled returns a channel that is closed once the query leaves
// [StatusPending]. For queries created already settled the channel is
// closed on return.
func (q *Query[T]) Settled() <-chan struct{} {
	return q.settled
}

// snapshot returns status, result and error as one consistent view.
func (q *Query[T]) snapshot() (Status, T, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status, q.result, q.err
}

// resolve settles a pending query as DONE. It reports false if the query
// was already settled.
func (q *Query[T]) resolve(result T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status != StatusPending {
		return false
	}
	q.status = StatusDone
	q.result = result
	close(q.settled)
	return true
}

// reject settles a pending query as FAILED. It reports false if the query
// was already settled.
func (q *Query[T]) reject(err error) bool {
	if err == nil {
		err = ErrUnknownFailure
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status != StatusPending {
		return false
	}
	q.status = StatusFailed
	q.err = err
	close(q.settled)
	return true
}
