package flux

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/flux/internal/metrics"
)

// StoreConfig configures a [Store].
//
// StoreConfig is passed by value; [Registry.CreateStore] fills in a missing
// Dispatcher on its own copy and never modifies the caller's value.
type StoreConfig struct {
	// Name identifies the store in logs, metrics and devtools. Required.
	Name string

	// Dispatcher is the dispatcher the store is wired to. When nil,
	// [Registry.CreateStore] resolves the registry's default.
	Dispatcher Dispatcher

	// InitialState is the store's state before any change.
	InitialState any

	// Logger receives store events. Defaults to slog.Default().
	Logger *slog.Logger

	metrics *metrics.Metrics
}

// QueryInfo summarises one query tracked by a store.
type QueryInfo struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// trackedQuery is the type-erased view of a *Query[T] held by a store.
type trackedQuery interface {
	ID() string
	Status() Status
	Err() error
}

// Store is a stateful component wired to a [Dispatcher].
//
// A store owns the queries it creates through [Fetch]: it is the only code
// that settles them. Stores are safe for concurrent use.
type Store struct {
	id         string
	name       string
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	state   any
	queries map[string]trackedQuery
}

// NewStore creates a [Store] from cfg.
//
// Returns an error if Name is empty or Dispatcher is nil. Most callers use
// [Registry.CreateStore], which supplies the default dispatcher and records
// the store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Name == "" {
		return nil, errors.New("store name cannot be empty")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("store dispatcher cannot be nil")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	return &Store{
		id:         id,
		name:       cfg.Name,
		dispatcher: cfg.Dispatcher,
		logger:     logger.With("store", cfg.Name, "store_id", id),
		metrics:    cfg.metrics,
		state:      cfg.InitialState,
		queries:    make(map[string]trackedQuery),
	}, nil
}

// ID returns the store's unique identifier.
func (s *Store) ID() string {
	return s.id
}

// Name returns the store's configured name.
func (s *Store) Name() string {
	return s.name
}

// Dispatcher returns the dispatcher the store is wired to.
func (s *Store) Dispatcher() Dispatcher {
	return s.dispatcher
}

// State returns the store's current state.
func (s *Store) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState replaces the store's state.
func (s *Store) SetState(state any) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Queries returns the queries the store is tracking, sorted by ID.
// These are the in-flight and failed remote fetches.
func (s *Store) Queries() []QueryInfo {
	s.mu.RLock()
	infos := make([]QueryInfo, 0, len(s.queries))
	for _, q := range s.queries {
		info := QueryInfo{ID: q.ID(), Status: q.Status()}
		if err := q.Err(); err != nil {
			info.Error = err.Error()
		}
		infos = append(infos, info)
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Invalidate forgets the tracked query with the given id so the next
// [Fetch] for it goes remote again. Unknown ids are ignored.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	delete(s.queries, id)
	s.mu.Unlock()
}
