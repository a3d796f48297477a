package flux

import "strings"

// Status represents the lifecycle state of a [Query].
//
// Status is a string type that can hold one of three predefined values:
// [StatusPending], [StatusDone], or [StatusFailed]. The canonical form is
// upper case; handler maps passed to [Match] are keyed by the lower-case form
// returned by [Status.Key].
type Status string

const (
	// StatusPending indicates the read has started but not yet settled.
	// This is the initial state of every remote fetch.
	StatusPending Status = "PENDING"

	// StatusDone indicates the read completed and a result is available.
	StatusDone Status = "DONE"

	// StatusFailed indicates the read failed and an error is available.
	StatusFailed Status = "FAILED"
)

// String returns the canonical (upper case) representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Key returns the lower-case handler map key for the status.
func (s Status) Key() string {
	return strings.ToLower(string(s))
}

// Terminal reports whether the status is DONE or FAILED.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is one of the three defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}
