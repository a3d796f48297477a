package flux

import (
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// registryConfig holds mutable state during Registry construction.
type registryConfig struct {
	provider   DispatcherProvider
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option is a function that configures a [Registry] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithDispatcher], [WithDispatcherProvider],
// [WithLogger], [WithMetricsRegisterer].
type Option func(*registryConfig) error

// WithDispatcher sets a fixed default [Dispatcher] for components created
// without one.
//
// Example:
//
//	d := flux.NewDispatcher(nil)
//	reg, err := flux.New(flux.WithDispatcher(d))
//
// Returns an error if d is nil.
func WithDispatcher(d Dispatcher) Option {
	return func(cfg *registryConfig) error {
		if d == nil {
			return errors.New("dispatcher cannot be nil")
		}
		cfg.provider = staticProvider{d: d}
		return nil
	}
}

// WithDispatcherProvider sets a [DispatcherProvider] consulted on every
// create call. Use this when the default dispatcher can change over the
// registry's lifetime.
//
// Returns an error if p is nil.
func WithDispatcherProvider(p DispatcherProvider) Option {
	return func(cfg *registryConfig) error {
		if p == nil {
			return errors.New("dispatcher provider cannot be nil")
		}
		cfg.provider = p
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the registry and the components
// it creates (unless their config carries a logger of its own).
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *registryConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithMetricsRegisterer enables Prometheus metrics for the registry, its
// stores and action creators, registered with reg.
//
// Example:
//
//	promReg := prometheus.NewRegistry()
//	reg, err := flux.New(flux.WithMetricsRegisterer(promReg))
//
// Returns an error if reg is nil.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(cfg *registryConfig) error {
		if reg == nil {
			return errors.New("metrics registerer cannot be nil")
		}
		cfg.registerer = reg
		return nil
	}
}
