package flux

import (
	"log/slog"
	"sync"

	"github.com/jpalmerr/flux/internal/metrics"
)

// Component kinds, used in logs and metrics.
const (
	KindStore          = "store"
	KindHTTPAPI        = "http_api"
	KindActionCreators = "action_creators"
	KindStateMixin     = "state_mixin"
)

// Registry creates components wired to a shared [Dispatcher] and keeps the
// ordered list of stores it created.
//
// Every create call takes a configuration value whose Dispatcher field may be
// nil; the registry then wires the component to its default dispatcher, read
// from its [DispatcherProvider] at call time. Passing an explicit dispatcher
// isolates a component, which is the usual seam for tests.
//
// Only stores are recorded. The store list is append-only for the life of
// the registry. Registry is safe for concurrent use.
//
// The typical lifecycle is:
//
//	reg, err := flux.New()
//	if err != nil {
//	    slog.Error("failed to create registry", "error", err)
//	    os.Exit(1)
//	}
//
//	users, err := reg.CreateStore(flux.StoreConfig{Name: "users"})
type Registry struct {
	provider DispatcherProvider
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	stores []*Store
}

// New creates a new [Registry] with the given options.
//
// Without [WithDispatcher] or [WithDispatcherProvider] the registry creates
// its own [LocalDispatcher] as the default.
//
// Returns an error if any option is invalid or metrics cannot be registered.
func New(opts ...Option) (*Registry, error) {
	cfg := &registryConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := cfg.provider
	if provider == nil {
		provider = staticProvider{d: NewDispatcher(logger)}
	}

	var m *metrics.Metrics
	if cfg.registerer != nil {
		var err error
		m, err = metrics.New(cfg.registerer)
		if err != nil {
			return nil, err
		}
		m.SetStores(0)
	}

	return &Registry{
		provider: provider,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Dispatcher returns the registry's current default dispatcher.
func (r *Registry) Dispatcher() Dispatcher {
	return r.provider.Current()
}

// resolveDispatcher returns explicit when non-nil, else the current default.
func (r *Registry) resolveDispatcher(explicit Dispatcher) Dispatcher {
	if explicit != nil {
		return explicit
	}
	return r.provider.Current()
}

// CreateStore creates a [Store] from cfg and records it in the registry.
//
// A nil cfg.Dispatcher is replaced with the registry's default dispatcher.
// Errors from [NewStore] are returned unchanged and leave the registry as
// it was.
func (r *Registry) CreateStore(cfg StoreConfig) (*Store, error) {
	cfg.Dispatcher = r.resolveDispatcher(cfg.Dispatcher)
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	cfg.metrics = r.metrics

	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.stores = append(r.stores, store)
	n := len(r.stores)
	r.mu.Unlock()

	r.metrics.ComponentCreated(KindStore)
	r.metrics.SetStores(n)
	r.logCreated(KindStore, store.Name(), store.Dispatcher())
	return store, nil
}

// CreateHTTPAPI creates an [HTTPAPI] from cfg. The API is not recorded.
func (r *Registry) CreateHTTPAPI(cfg HTTPAPIConfig) (*HTTPAPI, error) {
	cfg.Dispatcher = r.resolveDispatcher(cfg.Dispatcher)
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}

	api, err := NewHTTPAPI(cfg)
	if err != nil {
		return nil, err
	}

	r.metrics.ComponentCreated(KindHTTPAPI)
	r.logCreated(KindHTTPAPI, api.Name(), api.Dispatcher())
	return api, nil
}

// CreateHttpAPI is an alias for [Registry.CreateHTTPAPI].
func (r *Registry) CreateHttpAPI(cfg HTTPAPIConfig) (*HTTPAPI, error) {
	return r.CreateHTTPAPI(cfg)
}

// CreateActionCreators creates [ActionCreators] from cfg. They are not recorded.
func (r *Registry) CreateActionCreators(cfg ActionCreatorsConfig) (*ActionCreators, error) {
	cfg.Dispatcher = r.resolveDispatcher(cfg.Dispatcher)
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	cfg.metrics = r.metrics

	ac, err := NewActionCreators(cfg)
	if err != nil {
		return nil, err
	}

	r.metrics.ComponentCreated(KindActionCreators)
	r.logCreated(KindActionCreators, ac.Name(), ac.Dispatcher())
	return ac, nil
}

// CreateStateMixin creates a [StateMixin] from cfg. It is not recorded.
func (r *Registry) CreateStateMixin(cfg StateMixinConfig) (*StateMixin, error) {
	cfg.Dispatcher = r.resolveDispatcher(cfg.Dispatcher)

	mixin, err := NewStateMixin(cfg)
	if err != nil {
		return nil, err
	}

	r.metrics.ComponentCreated(KindStateMixin)
	r.logCreated(KindStateMixin, "", mixin.Dispatcher())
	return mixin, nil
}

// CreateConstants is [CreateConstants]. It does not touch the registry's
// dispatcher or store list.
func (r *Registry) CreateConstants(names ...string) Constants {
	return CreateConstants(names...)
}

// Stores returns the created stores in creation order.
//
// The returned slice is a snapshot; later CreateStore calls are not
// reflected and modifying it does not affect the registry.
func (r *Registry) Stores() []*Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := make([]*Store, len(r.stores))
	copy(cp, r.stores)
	return cp
}

// Len returns the number of stores created so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

func (r *Registry) logCreated(kind, name string, d Dispatcher) {
	r.logger.Debug("component created",
		"kind", kind,
		"name", name,
		"dispatcher_id", d.ID(),
	)
}
