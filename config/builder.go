package config

import (
	"fmt"

	"github.com/jpalmerr/flux"
)

// Components holds what [Build] created.
type Components struct {
	// Stores are the created stores, in config order.
	Stores []*flux.Store

	// APIs maps API names to the created HTTP APIs.
	APIs map[string]*flux.HTTPAPI

	// Constants holds the generated constants per group.
	Constants flux.ConstantGroups
}

// Build creates the configured stores and HTTP APIs through reg.
//
// Stores are created in config order and therefore appear in reg.Stores()
// in that order. All components use reg's default dispatcher. Build stops at
// the first construction error; stores created before it remain in reg.
func Build(cfg *Config, reg *flux.Registry) (*Components, error) {
	out := &Components{
		Stores:    make([]*flux.Store, 0, len(cfg.Stores)),
		APIs:      make(map[string]*flux.HTTPAPI, len(cfg.APIs)),
		Constants: flux.CreateConstantGroups(cfg.Constants),
	}

	for _, sc := range cfg.Stores {
		store, err := reg.CreateStore(flux.StoreConfig{
			Name:         sc.Name,
			InitialState: sc.InitialState,
		})
		if err != nil {
			return nil, fmt.Errorf("store (%s): %w", sc.Name, err)
		}
		out.Stores = append(out.Stores, store)
	}

	for _, ac := range cfg.APIs {
		api, err := reg.CreateHTTPAPI(flux.HTTPAPIConfig{
			Name:    ac.Name,
			BaseURL: ac.BaseURL,
			Timeout: ac.Timeout.Duration(),
			Headers: ac.Headers,
		})
		if err != nil {
			return nil, fmt.Errorf("api (%s): %w", ac.Name, err)
		}
		out.APIs[ac.Name] = api
	}

	return out, nil
}

// Close releases idle connections held by the created APIs.
func (c *Components) Close() {
	for _, api := range c.APIs {
		api.Close()
	}
}
