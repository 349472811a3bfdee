// pattern: Imperative Shell

// Package web serves the registry and reconciliation passes over HTTP.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"projsync/internal/logging"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
)

// Engine is the part of *session.Engine the server drives.
type Engine interface {
	Snapshot(ctx context.Context) ([]registry.Record, error)
	Reconcile(ctx context.Context) (*reconcile.Result, error)
	Pass(ctx context.Context, resolver reconcile.Resolver, dryRun bool) (*reconcile.Report, error)
	Add(ctx context.Context, rel, name string) (registry.Record, error)
	Remove(ctx context.Context, id int64) error
	Policy() reconcile.Policy
	Recent() []logging.LogEntry
}

// Server is the web server that serves the API.
type Server struct {
	httpServer *http.Server
	engine     Engine
	logger     *logging.ScopedLogger
	addr       string
	listener   net.Listener
	events     *eventBroker
}

// Config holds web server configuration.
type Config struct {
	Bind string
	Port int
}

// New creates a web server.
// logProvider must implement logging.LoggerProvider (both *logging.Manager and
// *logging.TestLogManager satisfy this interface).
func New(cfg Config, engine Engine, logProvider logging.LoggerProvider) *Server {
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		logger: logProvider.For("web"),
		addr:   addr,
		events: newEventBroker(),
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/projects", s.handleGetProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("DELETE /api/projects/{id}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/scan", s.handleScan)
	mux.HandleFunc("POST /api/reconcile", s.handleReconcile)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/resolve", s.handleResolve)

	return s
}

// Handler returns the server's routes, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Notify tells event subscribers that the registry may have changed.
// Hosts that mutate the registry outside the API (the watcher) call it.
func (s *Server) Notify() {
	s.events.Notify()
}

// Listen binds the server to its configured address and returns the listener.
// Call Serve() after Listen() to start accepting connections.
// This two-step approach allows callers to obtain the actual bound address
// (useful for ephemeral port 0 in tests) before the server blocks on Serve().
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("web server listen: %w", err)
	}
	s.listener = ln
	return ln, nil
}

// Serve accepts connections on the listener. Blocks until the server stops.
// Must call Listen() first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("web server started", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Addr returns the address the server is listening on.
// Only valid after Listen() has been called.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("web server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
