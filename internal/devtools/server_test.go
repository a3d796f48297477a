package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/flux"
	"github.com/jpalmerr/flux/internal/actionlog"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry returns a registry with two stores and its metrics registry.
func newTestRegistry(t *testing.T) (*flux.Registry, *prometheus.Registry) {
	t.Helper()

	promReg := prometheus.NewRegistry()
	reg, err := flux.New(flux.WithLogger(testLogger()), flux.WithMetricsRegisterer(promReg))
	if err != nil {
		t.Fatalf("flux.New() error = %v", err)
	}
	for _, name := range []string{"users", "todos"} {
		if _, err := reg.CreateStore(flux.StoreConfig{Name: name}); err != nil {
			t.Fatalf("CreateStore(%q) error = %v", name, err)
		}
	}
	return reg, promReg
}

func TestHandleStores(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/stores", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var got []StoreSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d stores, want 2", len(got))
	}
	if got[0].Name != "users" || got[1].Name != "todos" {
		t.Errorf("stores out of creation order: %q, %q", got[0].Name, got[1].Name)
	}
	if got[0].DispatcherID != reg.Dispatcher().ID() {
		t.Errorf("DispatcherID = %q, want %q", got[0].DispatcherID, reg.Dispatcher().ID())
	}
}

func TestHandleStores_MethodNotAllowed(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/stores", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleActions(t *testing.T) {
	reg, _ := newTestRegistry(t)
	log := actionlog.NewMemoryLog(10)
	log.Attach(reg.Dispatcher())

	ac, err := reg.CreateActionCreators(flux.ActionCreatorsConfig{Name: "todos"})
	if err != nil {
		t.Fatalf("CreateActionCreators() error = %v", err)
	}
	if err := ac.Dispatch("ADD_TODO", "write tests"); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	srv := NewServer(reg, log, nil, 0, testLogger())
	req := httptest.NewRequest(http.MethodGet, "/api/actions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var got []actionlog.Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].Type != "ADD_TODO" || got[0].Source != "todos" {
		t.Errorf("unexpected actions: %+v", got)
	}
}

func TestHandleStream_ReplaysHistory(t *testing.T) {
	log := actionlog.NewMemoryLog(10)
	log.Record(actionlog.Entry{ID: "1", Type: "FIRST"})
	log.Record(actionlog.Entry{ID: "2", Type: "SECOND"})

	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, log, nil, 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/actions/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleStream(rec, req)

	body := rec.Body.String()
	for _, want := range []string{"FIRST", "SECOND"} {
		if !strings.Contains(body, want) {
			t.Errorf("response should contain %s, got: %s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
}

func TestHandleStream_StreamsNewEntries(t *testing.T) {
	log := actionlog.NewMemoryLog(10)
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, log, nil, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/actions/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleStream(rec, req)
		close(done)
	}()

	// wait for the handler to subscribe before recording
	time.Sleep(50 * time.Millisecond)
	log.Record(actionlog.Entry{ID: "3", Type: "LIVE"})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not return after context cancellation")
	}

	if !strings.Contains(rec.Body.String(), "LIVE") {
		t.Errorf("response should contain LIVE, got: %s", rec.Body.String())
	}
}

func TestHandleActions_Dispatch(t *testing.T) {
	reg, _ := newTestRegistry(t)
	log := actionlog.NewMemoryLog(10)
	log.Attach(reg.Dispatcher())

	ac, err := reg.CreateActionCreators(flux.ActionCreatorsConfig{Name: "devtools"})
	if err != nil {
		t.Fatalf("CreateActionCreators() error = %v", err)
	}
	srv := NewServer(reg, log, nil, 0, testLogger())
	srv.EnableDispatch(ac, flux.ConstantGroups{"todos": flux.CreateConstants("ADD_TODO")})

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "known type", body: `{"type":"ADD_TODO_DONE","arguments":["milk"]}`, wantCode: http.StatusAccepted},
		{name: "unknown type", body: `{"type":"DELETE_TODO"}`, wantCode: http.StatusBadRequest},
		{name: "missing type", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body: %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}

	got := log.GetAll()
	if len(got) != 1 || got[0].Type != "ADD_TODO_DONE" || got[0].Source != "devtools" {
		t.Fatalf("recorded actions = %+v, want one ADD_TODO_DONE from devtools", got)
	}
	if len(got[0].Arguments) != 1 || got[0].Arguments[0] != "milk" {
		t.Errorf("Arguments = %v, want [milk]", got[0].Arguments)
	}
}

func TestHandleActions_DispatchAnyTypeWithoutConstants(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ac, _ := reg.CreateActionCreators(flux.ActionCreatorsConfig{Name: "devtools"})
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())
	srv.EnableDispatch(ac, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(`{"type":"ANYTHING"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}
}

func TestHandleActions_PostDisabled(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/actions", strings.NewReader(`{"type":"X"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleStream_NoDuplicateReplay(t *testing.T) {
	log := actionlog.NewMemoryLog(10)
	log.Record(actionlog.Entry{ID: "1", Type: "FIRST"})

	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, log, nil, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/actions/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleStream(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	log.Record(actionlog.Entry{ID: "2", Type: "SECOND"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if n := strings.Count(body, `"FIRST"`); n != 1 {
		t.Errorf("FIRST sent %d times, want 1", n)
	}
	if n := strings.Count(body, `"SECOND"`); n != 1 {
		t.Errorf("SECOND sent %d times, want 1", n)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg, promReg := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), promReg, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "flux_registry_stores 2") {
		t.Errorf("metrics should report 2 stores, got:\n%s", body)
	}
	if !strings.Contains(body, `flux_components_created_total{kind="store"} 2`) {
		t.Errorf("metrics should count 2 created stores, got:\n%s", body)
	}
}

func TestMetricsRoute_DisabledWithoutGatherer(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestStart_ServesAndShutsDown(t *testing.T) {
	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- srv.Start(ctx) }()

	select {
	case <-srv.Ready():
	case err := <-errChan:
		t.Fatalf("Start() returned before serving: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server not ready")
	}

	port := srv.Addr().(*net.TCPAddr).Port
	url := fmt.Sprintf("http://127.0.0.1:%d/api/stores", port)

	// Start keeps serving until the context is cancelled
	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-errChan:
		t.Fatalf("Start() returned while context still live: %v", err)
	default:
	}

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cancel()

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("Start() error = %v, want nil after clean shutdown", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}

	if _, err := http.Get(url); err == nil {
		t.Error("server still accepting connections after Start returned")
	}
}

func TestStart_BindError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	reg, _ := newTestRegistry(t)
	srv := NewServer(reg, actionlog.NewMemoryLog(10), nil, ln.Addr().(*net.TCPAddr).Port, testLogger())

	err = srv.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("Start() error = %v, want bind error", err)
	}
}
