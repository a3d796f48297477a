package actionlog

import (
	"fmt"
	"sync"

	"github.com/jpalmerr/flux"
)

// DefaultCapacity is the number of entries retained when no capacity is given.
const DefaultCapacity = 500

// subscriberBuffer is the channel buffer size for each subscriber.
const subscriberBuffer = 100

// MemoryLog is an in-memory implementation of [Log].
//
// MemoryLog retains at most its capacity of entries; recording past that
// evicts the oldest entry. Subscribers receive entries via buffered channels
// (buffer size 100). Sends are non-blocking; if a subscriber's buffer is
// full, the entry is dropped for that subscriber.
type MemoryLog struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int

	subscribers map[chan Entry]struct{}
	subMu       sync.RWMutex
}

// NewMemoryLog creates a new in-memory [Log] retaining up to capacity
// entries. A capacity of zero or less uses [DefaultCapacity].
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryLog{
		entries:     make([]Entry, 0, capacity),
		capacity:    capacity,
		subscribers: make(map[chan Entry]struct{}),
	}
}

// Attach registers a callback on d that records every dispatched action.
// It returns the registration token; pass it to d.Unregister to detach.
func (m *MemoryLog) Attach(d flux.Dispatcher) string {
	dispatcherID := d.ID()
	return d.Register(func(a flux.Action) {
		m.Record(FromAction(dispatcherID, a))
	})
}

// FromAction converts a dispatched action to an [Entry].
func FromAction(dispatcherID string, a flux.Action) Entry {
	var args []string
	if len(a.Arguments) > 0 {
		args = make([]string, len(a.Arguments))
		for i, arg := range a.Arguments {
			args[i] = fmt.Sprintf("%v", arg)
		}
	}
	return Entry{
		ID:           a.ID,
		Type:         a.Type,
		Source:       a.Source,
		DispatcherID: dispatcherID,
		Arguments:    args,
		Timestamp:    a.Timestamp,
	}
}

// Record appends entry, evicting the oldest entry when full, and notifies
// all subscribers.
func (m *MemoryLog) Record(entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == m.capacity {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, entry)

	// notify under mu so SubscribeWithHistory sees each entry exactly once;
	// sends never block
	m.notifySubscribers(entry)
}

// GetAll returns a snapshot of the retained entries, oldest first.
func (m *MemoryLog) GetAll() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, len(m.entries))
	copy(entries, m.entries)
	return entries
}

// Len returns the number of retained entries.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Subscribe creates a new subscription and returns a channel for receiving
// entries.
//
// Caller must call [MemoryLog.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryLog) Subscribe() <-chan Entry {
	ch := make(chan Entry, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// SubscribeWithHistory returns a snapshot of the retained entries together
// with a subscription for entries recorded after it.
func (m *MemoryLog) SubscribeWithHistory() ([]Entry, <-chan Entry) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, len(m.entries))
	copy(entries, m.entries)
	return entries, m.Subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryLog) Unsubscribe(ch <-chan Entry) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the entry to all active subscribers without blocking.
func (m *MemoryLog) notifySubscribers(entry Entry) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- entry:
		default:
			// subscriber is slow, drop the entry
		}
	}
}
