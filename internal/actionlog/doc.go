// Package actionlog records actions dispatched through a flux dispatcher.
//
// This package backs the devtools server. It keeps a bounded, in-memory
// history of dispatched actions and implements a publish-subscribe pattern
// for streaming new entries to connected clients.
//
// The main components are:
//
//   - [Log]: Interface defining record, snapshot and subscription operations
//   - [MemoryLog]: In-memory implementation of Log with pub/sub
//   - [Entry]: Storage representation of one dispatched action
//
// The log is designed for concurrent access with proper synchronization.
// Subscribers receive entries via channels with non-blocking sends (slow
// subscribers will miss entries rather than block dispatch).
package actionlog
