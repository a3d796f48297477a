package flux

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
)

// FetchOptions describes one read against a [Store].
type FetchOptions[T any] struct {
	// ID identifies the read. Concurrent fetches with the same ID share one
	// remote call. Required.
	ID string

	// Locally returns the value if the store already has it.
	Locally func() (T, bool)

	// Remotely loads the value. It runs on its own goroutine with the
	// context passed to [Fetch] and should honour cancellation.
	Remotely func(ctx context.Context) (T, error)
}

// Fetch reads a value through store s and returns a [Query] describing the
// outcome.
//
// Resolution order:
//  1. Locally reports the value: a DONE query is returned.
//  2. A remote fetch with the same ID is in flight: that query is returned.
//  3. A previous remote fetch with the same ID failed: the FAILED query is
//     returned until [Store.Invalidate] is called for the ID.
//  4. Remotely is nil: a FAILED query wrapping [ErrNotFound] is returned.
//  5. Otherwise Remotely is started and a PENDING query is returned. The
//     store settles it when Remotely returns.
//
// Fetch never blocks on the remote call. Callers branch on the result with
// [When] and may wait on [Query.Settled].
func Fetch[T any](ctx context.Context, s *Store, opts FetchOptions[T]) *Query[T] {
	if opts.ID == "" {
		return FailedQuery[T]("", ErrInvalidFetch)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Locally != nil {
		if v, ok := opts.Locally(); ok {
			s.metrics.Fetch(s.name, StatusDone.Key())
			return DoneQuery(opts.ID, v)
		}
	}

	s.mu.Lock()
	if tracked, ok := s.queries[opts.ID]; ok {
		s.mu.Unlock()
		q, ok := tracked.(*Query[T])
		if !ok {
			return FailedQuery[T](opts.ID, fmt.Errorf("query %q is already tracked with a different result type", opts.ID))
		}
		return q
	}

	if opts.Remotely == nil {
		s.mu.Unlock()
		s.metrics.Fetch(s.name, StatusFailed.Key())
		return FailedQuery[T](opts.ID, fmt.Errorf("%s: %w", opts.ID, ErrNotFound))
	}

	q := PendingQuery[T](opts.ID)
	s.queries[opts.ID] = q
	s.mu.Unlock()

	s.metrics.Fetch(s.name, StatusPending.Key())
	s.logger.Debug("remote fetch started", "query", opts.ID)

	go settle(ctx, s, q, opts.Remotely)
	return q
}

// settle runs remotely and settles q with its outcome. A panic in remotely
// fails the query with an error carrying a correlation ID; the stack is logged.
func settle[T any](ctx context.Context, s *Store, q *Query[T], remotely func(context.Context) (T, error)) {
	result, err := callRemote(ctx, s, q.ID(), remotely)

	s.mu.Lock()
	if err != nil {
		q.reject(err)
	} else {
		q.resolve(result)
		// successful reads are served by Locally from now on
		if s.queries[q.ID()] == trackedQuery(q) {
			delete(s.queries, q.ID())
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.metrics.Fetch(s.name, StatusFailed.Key())
		s.logger.Warn("remote fetch failed", "query", q.ID(), "error", err.Error())
		return
	}
	s.metrics.Fetch(s.name, StatusDone.Key())
	s.logger.Debug("remote fetch done", "query", q.ID())
}

// callRemote calls remotely with panic recovery.
func callRemote[T any](ctx context.Context, s *Store, id string, remotely func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("remote fetch panic",
				"query", id,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			var zero T
			result = zero
			err = fmt.Errorf("remote fetch panic (correlation_id: %s)", correlationID)
		}
	}()
	return remotely(ctx)
}
