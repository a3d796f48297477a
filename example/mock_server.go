package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// User is the record served by the mock API.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var mockUsers = map[string]User{
	"1": {ID: "1", Name: "Ada"},
	"2": {ID: "2", Name: "Grace"},
	"3": {ID: "3", Name: "Linus"},
}

// StartMockUsersServer runs a mock users API on addr.
// GET /users/{id} returns a user after 50-200ms, or 404 for unknown ids.
// Call this in a goroutine before creating the HTTP API.
func StartMockUsersServer(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/users/")

		// simulate small latency variance
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		user, ok := mockUsers[id]
		if !ok {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(user); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
