package config

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/flux"
)

func newTestRegistry(t *testing.T) *flux.Registry {
	t.Helper()
	reg, err := flux.New(flux.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("flux.New() error = %v", err)
	}
	return reg
}

func TestBuild_StoresInOrder(t *testing.T) {
	cfg := &Config{
		Stores: []StoreConfig{
			{Name: "users"},
			{Name: "todos", InitialState: []string{"a"}},
		},
	}
	reg := newTestRegistry(t)

	built, err := Build(cfg, reg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	stores := reg.Stores()
	if len(stores) != 2 {
		t.Fatalf("len(reg.Stores()) = %d, want 2", len(stores))
	}
	if stores[0].Name() != "users" || stores[1].Name() != "todos" {
		t.Errorf("stores = %q, %q; want users, todos", stores[0].Name(), stores[1].Name())
	}
	if stores[1] != built.Stores[1] {
		t.Error("Build() stores should be the registry's stores")
	}
	for _, st := range stores {
		if st.Dispatcher() != reg.Dispatcher() {
			t.Errorf("store %q not wired to the default dispatcher", st.Name())
		}
	}
}

func TestBuild_APIs(t *testing.T) {
	cfg := &Config{
		Stores: []StoreConfig{{Name: "users"}},
		APIs: []APIConfig{
			{
				Name:    "users-api",
				BaseURL: "https://api.example.com",
				Timeout: Duration(5 * time.Second),
				Headers: map[string]string{"Authorization": "Bearer token"},
			},
		},
	}
	reg := newTestRegistry(t)

	built, err := Build(cfg, reg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer built.Close()

	api, ok := built.APIs["users-api"]
	if !ok {
		t.Fatal("APIs[users-api] missing")
	}
	if api.Timeout() != 5*time.Second {
		t.Errorf("Timeout() = %v, want 5s", api.Timeout())
	}
	if api.Headers()["Authorization"] != "Bearer token" {
		t.Errorf("Headers()[Authorization] = %q, want %q", api.Headers()["Authorization"], "Bearer token")
	}

	// APIs are never recorded as stores
	if reg.Len() != 1 {
		t.Errorf("reg.Len() = %d, want 1", reg.Len())
	}
}

func TestBuild_Constants(t *testing.T) {
	cfg := &Config{
		Stores:    []StoreConfig{{Name: "users"}},
		Constants: map[string][]string{"users": {"RECEIVE_USER"}},
	}

	built, err := Build(cfg, newTestRegistry(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !built.Constants["users"].Has("RECEIVE_USER_FAILED") {
		t.Errorf("Constants[users] = %v, want RECEIVE_USER_FAILED", built.Constants["users"])
	}
}

func TestBuild_StoreErrorPropagates(t *testing.T) {
	cfg := &Config{Stores: []StoreConfig{{Name: "users"}, {Name: ""}}}
	reg := newTestRegistry(t)

	_, err := Build(cfg, reg)
	if err == nil {
		t.Fatal("Build() expected error for empty store name, got nil")
	}
	if !strings.Contains(err.Error(), "store name cannot be empty") {
		t.Errorf("error = %v, want store name error", err)
	}
	if reg.Len() != 1 {
		t.Errorf("reg.Len() = %d, want 1 (failed store must not be recorded)", reg.Len())
	}
}
