package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/google/go-cmp/cmp"
)

// executeCmd runs the root command with args and returns captured stdout and
// any error.
func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flux.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const validConfig = `
port: 8080
stores:
  - name: users
  - name: todos
apis:
  - name: users-api
    base_url: https://example.com
constants:
  users: [RECEIVE_USER, DELETE_USER]
  todos: [ADD_TODO]
`

func TestRunValidate_ValidConfig(t *testing.T) {
	output, err := executeCmd(t, "validate", "-c", writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Port:            8080",
		"Stores:          2",
		"APIs:            1",
		"2 groups, 3 names = 12 constants",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
stores:
  - name: ""
`)
	_, err := executeCmd(t, "validate", "-c", path)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "name is required") {
		t.Errorf("error should mention 'name is required', got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/path/flux.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunConstants(t *testing.T) {
	output, err := executeCmd(t, "constants", "-c", writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("constants command error = %v", err)
	}

	var got map[string][]string
	if err := yaml.Unmarshal([]byte(output), &got); err != nil {
		t.Fatalf("output is not YAML: %v\nGot: %s", err, output)
	}

	want := map[string][]string{
		"todos": {"ADD_TODO", "ADD_TODO_DONE", "ADD_TODO_FAILED", "ADD_TODO_STARTING"},
		"users": {
			"DELETE_USER", "DELETE_USER_DONE", "DELETE_USER_FAILED", "DELETE_USER_STARTING",
			"RECEIVE_USER", "RECEIVE_USER_DONE", "RECEIVE_USER_FAILED", "RECEIVE_USER_STARTING",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("constants mismatch (-want +got):\n%s", diff)
	}
}

func TestVersion(t *testing.T) {
	output, err := executeCmd(t, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.HasPrefix(output, "flux dev") {
		t.Errorf("output = %q, want prefix %q", output, "flux dev")
	}
}

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()
	return port
}

func TestRunServe_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	path := writeConfig(t, fmt.Sprintf(`
port: %d
log_level: error
stores:
  - name: users
  - name: todos
constants:
  todos: [ADD_TODO]
`, port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rootCmd.SetContext(ctx)
	serveCmd.SetContext(ctx)
	rootCmd.SetArgs([]string{"serve", "-c", path})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetContext(context.Background())
		serveCmd.SetContext(context.Background())
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	errChan := make(chan error, 1)
	go func() { errChan <- rootCmd.Execute() }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	// wait for the server to come up
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(base + "/api/stores")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		select {
		case err := <-errChan:
			t.Fatalf("serve returned before serving: %v", err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("serve did not start listening")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// still serving after a while
	time.Sleep(200 * time.Millisecond)
	select {
	case err := <-errChan:
		t.Fatalf("serve returned while context still live: %v", err)
	default:
	}

	resp, err := http.Post(base+"/api/actions", "application/json", strings.NewReader(`{"type":"ADD_TODO_STARTING"}`))
	if err != nil {
		t.Fatalf("POST /api/actions error = %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("POST /api/actions status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	resp, err = http.Get(base + "/api/actions")
	if err != nil {
		t.Fatalf("GET /api/actions error = %v", err)
	}
	var actions []struct {
		Type   string `json:"type"`
		Source string `json:"source"`
	}
	err = json.NewDecoder(resp.Body).Decode(&actions)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to decode actions: %v", err)
	}
	if len(actions) != 1 || actions[0].Type != "ADD_TODO_STARTING" || actions[0].Source != "devtools" {
		t.Errorf("actions = %+v, want one ADD_TODO_STARTING from devtools", actions)
	}

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("serve error = %v, want nil after cancel", err)
		}
	case <-time.After(12 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}
