package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jpalmerr/flux"
)

const usersLoaded = "RECEIVE_USER"

// FETCH_USER_STARTING, FETCH_USER_DONE and FETCH_USER_FAILED bracket each request.
const fetchUser = "FETCH_USER"

func main() {
	// start mock server (see mock_server.go)
	go StartMockUsersServer(":9999")
	time.Sleep(100 * time.Millisecond)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg, err := flux.New(flux.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create registry", "error", err)
		os.Exit(1)
	}

	users, err := reg.CreateStore(flux.StoreConfig{Name: "users"})
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}

	api, err := reg.CreateHTTPAPI(flux.HTTPAPIConfig{
		Name:    "users-api",
		BaseURL: "http://localhost:9999",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		slog.Error("failed to create http api", "error", err)
		os.Exit(1)
	}
	defer api.Close()

	actions, err := reg.CreateActionCreators(flux.ActionCreatorsConfig{Name: "users"})
	if err != nil {
		slog.Error("failed to create action creators", "error", err)
		os.Exit(1)
	}

	// the store caches users as they arrive
	var (
		mu    sync.Mutex
		cache = make(map[string]User)
	)
	reg.Dispatcher().Register(func(a flux.Action) {
		if a.Type != usersLoaded || len(a.Arguments) == 0 {
			return
		}
		if u, ok := a.Arguments[0].(User); ok {
			mu.Lock()
			cache[u.ID] = u
			users.SetState(len(cache))
			mu.Unlock()
		}
	})

	ctx := context.Background()
	load := func(id string) *flux.Query[User] {
		return flux.Fetch(ctx, users, flux.FetchOptions[User]{
			ID: "user-" + id,
			Locally: func() (User, bool) {
				mu.Lock()
				defer mu.Unlock()
				u, ok := cache[id]
				return u, ok
			},
			Remotely: func(ctx context.Context) (User, error) {
				var u User
				err := actions.Run(ctx, fetchUser, func(ctx context.Context) error {
					resp, err := api.Get(ctx, "/users/"+id)
					if err != nil {
						return err
					}
					return resp.DecodeJSON(&u)
				}, id)
				if err != nil {
					return User{}, err
				}
				// announce the loaded user so the store caches it
				return u, actions.Dispatch(usersLoaded, u)
			},
		})
	}

	render := flux.Handlers[User, string]{
		Pending: func() string { return "loading..." },
		Done:    func(u User) string { return "hello, " + u.Name },
		Failed:  func(err error) string { return "error: " + err.Error() },
	}

	show := func(label string, q *flux.Query[User]) {
		view, err := flux.When(q, render)
		if err != nil {
			slog.Error("failed to render user", "user", label, "error", err)
			os.Exit(1)
		}
		fmt.Printf("user %s: %s\n", label, view)
	}

	// fetches run concurrently; their actions are dispatched one at a time
	ids := []string{"1", "2", "42"}
	queries := make([]*flux.Query[User], len(ids))
	for i, id := range ids {
		queries[i] = load(id)
		show(id, queries[i])
	}
	for i, q := range queries {
		<-q.Settled()
		show(ids[i], q)
	}

	// second read is served locally
	show("1 (cached)", load("1"))

	fmt.Printf("stores: %d, users cached: %v\n", reg.Len(), users.State())
}
