package flux

import "errors"

// StateMixinConfig configures a [StateMixin].
type StateMixinConfig struct {
	// Dispatcher is the dispatcher the mixin is wired to. When nil,
	// [Registry.CreateStateMixin] resolves the registry's default.
	Dispatcher Dispatcher

	// Stores are the stores whose state the mixin exposes.
	Stores []*Store

	// GetState, when set, computes the state instead of the per-store map.
	GetState func() any
}

// StateMixin binds a view to the state of one or more stores.
type StateMixin struct {
	dispatcher Dispatcher
	stores     []*Store
	getState   func() any
}

// NewStateMixin creates a [StateMixin] from cfg.
// Returns an error if Dispatcher is nil or a store is nil.
func NewStateMixin(cfg StateMixinConfig) (*StateMixin, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("state mixin dispatcher cannot be nil")
	}
	for _, s := range cfg.Stores {
		if s == nil {
			return nil, errors.New("state mixin stores cannot contain nil")
		}
	}
	stores := make([]*Store, len(cfg.Stores))
	copy(stores, cfg.Stores)

	return &StateMixin{
		dispatcher: cfg.Dispatcher,
		stores:     stores,
		getState:   cfg.GetState,
	}, nil
}

// Dispatcher returns the dispatcher the mixin is wired to.
func (m *StateMixin) Dispatcher() Dispatcher {
	return m.dispatcher
}

// Stores returns a copy of the stores the mixin reads from.
func (m *StateMixin) Stores() []*Store {
	cp := make([]*Store, len(m.stores))
	copy(cp, m.stores)
	return cp
}

// State returns GetState() when configured, otherwise a map from store name
// to that store's current state.
func (m *StateMixin) State() any {
	if m.getState != nil {
		return m.getState()
	}
	state := make(map[string]any, len(m.stores))
	for _, s := range m.stores {
		state[s.Name()] = s.State()
	}
	return state
}
