package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/flux"
	"github.com/jpalmerr/flux/internal/actionlog"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	maxDispatchBodySize = 1 << 20 // 1MB
)

// StoreLister is the part of [flux.Registry] the server reads.
type StoreLister interface {
	Stores() []*flux.Store
}

// ActionDispatcher is the part of [flux.ActionCreators] used to dispatch
// actions posted to /api/actions.
type ActionDispatcher interface {
	Dispatch(actionType string, args ...any) error
}

// DispatchRequest is the JSON body accepted by POST /api/actions.
type DispatchRequest struct {
	Type      string `json:"type"`
	Arguments []any  `json:"arguments,omitempty"`
}

// StoreSummary is the JSON representation of one store.
type StoreSummary struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	DispatcherID string           `json:"dispatcher_id"`
	Queries      []flux.QueryInfo `json:"queries"`
}

// Server handles HTTP requests for the devtools API.
//
// Routes:
//   - GET /api/stores: registered stores, in creation order
//   - GET /api/actions: retained action log entries
//   - POST /api/actions: dispatch an action (when enabled)
//   - GET /api/actions/stream: Server-Sent Events stream of new actions
//   - GET /metrics: Prometheus metrics (when a gatherer is configured)
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	stores     StoreLister
	actions    actionlog.Log
	gatherer   prometheus.Gatherer
	port       int
	httpServer *http.Server
	addr       net.Addr
	ready      chan struct{}
	logger     *slog.Logger

	dispatcher ActionDispatcher
	known      flux.ConstantGroups
}

// NewServer creates a new devtools [Server].
//
// Parameters:
//   - stores: source of registered stores
//   - actions: action log to expose
//   - gatherer: metrics source for /metrics (may be nil to disable the route)
//   - port: TCP port to listen on (0 picks a free port)
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(stores StoreLister, actions actionlog.Log, gatherer prometheus.Gatherer, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		stores:   stores,
		actions:  actions,
		gatherer: gatherer,
		port:     port,
		ready:    make(chan struct{}),
		logger:   logger,
	}
}

// EnableDispatch lets POST /api/actions dispatch through d. When known has
// any groups, only action types defined in one of them are accepted.
// Call before [Server.Handler] or [Server.Start].
func (s *Server) EnableDispatch(d ActionDispatcher, known flux.ConstantGroups) {
	s.dispatcher = d
	s.known = known
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stores", s.handleStores)
	mux.HandleFunc("/api/actions", s.handleActions)
	mux.HandleFunc("/api/actions/stream", s.handleStream)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start binds the configured port and serves HTTP requests until ctx is
// cancelled, then shuts down gracefully with a 5-second timeout.
//
// Start blocks. Bind failures are returned immediately; [Server.Ready] is
// closed once the listener is bound. Returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.addr = ln.Addr()

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// request contexts derive from ctx so SSE handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(ln)
	}()

	s.logger.Info("devtools listening", "addr", s.addr.String())
	close(s.ready)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("devtools server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("devtools server shutdown: %w", err)
	}
	return nil
}

// Ready returns a channel that is closed once Start has bound its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Nil until [Server.Ready] is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Summaries converts stores to their JSON representation.
func Summaries(stores []*flux.Store) []StoreSummary {
	out := make([]StoreSummary, 0, len(stores))
	for _, st := range stores {
		out = append(out, StoreSummary{
			ID:           st.ID(),
			Name:         st.Name(),
			DispatcherID: st.Dispatcher().ID(),
			Queries:      st.Queries(),
		})
	}
	return out
}

// handleStores returns all registered stores as JSON.
func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, Summaries(s.stores.Stores()))
}

// handleActions returns the retained action log as JSON, or dispatches a
// posted action.
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet:
		s.writeJSON(w, s.actions.GetAll())
	case r.Method == http.MethodPost && s.dispatcher != nil:
		s.handleDispatch(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDispatchBodySize)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type == "" {
		http.Error(w, "type is required", http.StatusBadRequest)
		return
	}
	if !s.isKnown(req.Type) {
		http.Error(w, fmt.Sprintf("unknown action type %q", req.Type), http.StatusBadRequest)
		return
	}

	if err := s.dispatcher.Dispatch(req.Type, req.Arguments...); err != nil {
		s.logger.Warn("devtools dispatch failed", "action", req.Type, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) isKnown(actionType string) bool {
	if len(s.known) == 0 {
		return true
	}
	for _, c := range s.known {
		if c.Has(actionType) {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleStream streams new action log entries via Server-Sent Events.
//
// Writes carry deadlines so a slow or vanished client cannot pin the
// handler goroutine past shutdown.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	history, ch := s.actions.SubscribeWithHistory()
	defer s.actions.Unsubscribe(ch)

	// replay retained history first
	for _, entry := range history {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		if err := writeAndFlush(data); err != nil {
			return
		}
	}

	for {
		select {
		case entry, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}
