// Package flux provides the runtime core of a unidirectional state
// management framework: a registry that wires stores and their sibling
// components to a shared dispatcher, and a query state machine for
// branching on the outcome of asynchronous reads.
//
// # Quick Start
//
// Create a registry, a store, and read through it:
//
//	reg, _ := flux.New()
//	users, _ := reg.CreateStore(flux.StoreConfig{Name: "users"})
//
//	q := flux.Fetch(ctx, users, flux.FetchOptions[User]{
//	    ID:       "user-42",
//	    Locally:  func() (User, bool) { return cache.Get("user-42") },
//	    Remotely: func(ctx context.Context) (User, error) { return api.LoadUser(ctx, "42") },
//	})
//
//	view, err := flux.When(q, flux.Handlers[User, string]{
//	    Pending: func() string { return "loading..." },
//	    Done:    func(u User) string { return u.Name },
//	    Failed:  func(err error) string { return "error: " + err.Error() },
//	})
//
// # Dispatcher Injection
//
// Every create call on a [Registry] takes a configuration value whose
// Dispatcher field may be left nil. The registry fills it in from its
// [DispatcherProvider], so all components share one dispatch channel by
// default. Supplying a dispatcher explicitly wires that one component to
// it instead:
//
//	isolated := flux.NewDispatcher(nil)
//	store, _ := reg.CreateStore(flux.StoreConfig{Name: "test", Dispatcher: isolated})
//
// Only stores are recorded by the registry; see [Registry.Stores]. HTTP
// APIs, action creators and state mixins are one-off instances.
//
// # Queries
//
// A [Query] is PENDING, DONE or FAILED. [When] takes a [Handlers] value with
// one callback per status; [Match] takes a [HandlerMap] keyed by lower-case
// status names for handler sets built at runtime. Both return a
// [*MissingHandlerError] when no handler exists for the current status.
//
// # Architecture
//
// Supporting packages (under internal/):
//
//   - internal/metrics: Prometheus collectors for registries and stores
//   - internal/actionlog: In-memory action history with pub/sub
//   - internal/devtools: HTTP inspection server (stores, action stream, metrics)
//
// The config package and the cmd/flux binary build a registry from YAML.
package flux
