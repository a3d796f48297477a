// Package devtools provides an HTTP inspection server for a flux registry.
//
// The server exposes the stores a registry has created, the actions
// flowing through its dispatcher (as a JSON snapshot and as a Server-Sent
// Events stream), and the registry's Prometheus metrics.
package devtools
