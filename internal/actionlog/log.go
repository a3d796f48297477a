package actionlog

import "time"

// Entry represents one dispatched action in the log.
//
// Entry is optimized for JSON serialization (used by the devtools REST API
// and SSE stream). Arguments are rendered to strings so that arbitrary
// payloads never break encoding.
type Entry struct {
	// ID is the action's unique identifier.
	ID string `json:"id"`

	// Type is the action type.
	Type string `json:"type"`

	// Source names the component that dispatched the action.
	Source string `json:"source,omitempty"`

	// DispatcherID identifies the dispatcher the action went through.
	DispatcherID string `json:"dispatcher_id"`

	// Arguments are the action arguments rendered with %v.
	Arguments []string `json:"arguments,omitempty"`

	// Timestamp is when the action was created.
	Timestamp time.Time `json:"timestamp"`
}

// Log defines the interface for recording and subscribing to actions.
//
// Log implementations must be safe for concurrent access.
type Log interface {
	// Record appends an entry and notifies all subscribers.
	Record(entry Entry)

	// GetAll returns the retained entries, oldest first.
	// The returned slice is a snapshot; modifications do not affect the log.
	GetAll() []Entry

	// Subscribe returns a channel that receives new entries.
	// The returned channel has a buffer; slow consumers may miss entries.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Entry

	// SubscribeWithHistory returns the retained entries and a subscription
	// taken atomically: every entry is in exactly one of the two.
	// Caller must call Unsubscribe when done.
	SubscribeWithHistory() ([]Entry, <-chan Entry)

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Entry)
}
