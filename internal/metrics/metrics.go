// Package metrics defines the Prometheus collectors recorded by a flux
// registry and the stores it creates.
//
// Collectors are only created when the caller supplies a registerer, so a
// registry built without metrics pays nothing for them.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flux"

// Metrics holds the collectors for one registry.
type Metrics struct {
	componentsCreated *prometheus.CounterVec
	storesRegistered  prometheus.Gauge
	fetches           *prometheus.CounterVec
	dispatches        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
//
// If a collector with the same descriptor is already registered (for example
// a second registry sharing one Prometheus registry), the existing collector
// is reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, errors.New("metrics: registerer cannot be nil")
	}

	m := &Metrics{
		componentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "components_created_total",
			Help:      "Components created through the registry, by kind.",
		}, []string{"kind"}),
		storesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_stores",
			Help:      "Stores currently held by the registry.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_fetches_total",
			Help:      "Store fetches by store name and the status they settled in.",
		}, []string{"store", "status"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_dispatched_total",
			Help:      "Actions dispatched by action creators, by action type and outcome.",
		}, []string{"type", "outcome"}),
	}

	var err error
	if m.componentsCreated, err = register(reg, m.componentsCreated); err != nil {
		return nil, err
	}
	if m.storesRegistered, err = register(reg, m.storesRegistered); err != nil {
		return nil, err
	}
	if m.fetches, err = register(reg, m.fetches); err != nil {
		return nil, err
	}
	if m.dispatches, err = register(reg, m.dispatches); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the already registered collector on conflict.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("metrics: register collector: %w", err)
	}
	return c, nil
}

// ComponentCreated counts one created component of the given kind.
// Safe to call on a nil *Metrics.
func (m *Metrics) ComponentCreated(kind string) {
	if m == nil {
		return
	}
	m.componentsCreated.WithLabelValues(kind).Inc()
}

// SetStores records the number of stores in the registry.
func (m *Metrics) SetStores(n int) {
	if m == nil {
		return
	}
	m.storesRegistered.Set(float64(n))
}

// Fetch counts a fetch on store that settled (or started) in status.
func (m *Metrics) Fetch(store, status string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(store, status).Inc()
}

// Dispatch counts an action dispatch with its outcome ("ok" or "error").
func (m *Metrics) Dispatch(actionType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.dispatches.WithLabelValues(actionType, outcome).Inc()
}
