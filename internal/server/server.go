package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/LeJamon/goCustodyd/internal/config"
)

// Logger is the minimal leveled logger the server reports through.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...interface{}) {}
func (nopLogger) Info(msg string, fields ...interface{})  {}
func (nopLogger) Warn(msg string, fields ...interface{})  {}
func (nopLogger) Error(msg string, fields ...interface{}) {}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the daemon's HTTP front: JSON-RPC on / and /rpc, a liveness
// probe on /health, and (when enabled) the websocket event feed on /ws.
type Server struct {
	cfg    config.ServerConfig
	http   *http.Server
	health HealthChecker
	logger Logger

	mu       sync.Mutex
	listener net.Listener
	running  bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New assembles the HTTP server. The feed may be nil, in which case /ws is
// not routed even when the config enables it.
func New(cfg config.ServerConfig, registry *Registry, feed *EventFeed, health HealthChecker, options ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		health: health,
		logger: nopLogger{},
	}
	for _, option := range options {
		option(s)
	}

	mux := http.NewServeMux()

	rpc := NewRPCHandler(registry, s.logger)
	mux.Handle("/", rpc)
	mux.Handle("/rpc", rpc)
	mux.HandleFunc("/health", s.handleHealth)

	if cfg.Websocket && feed != nil {
		mux.Handle("/ws", feed)
	}

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start binds the listener and begins serving in the background. It returns
// once the address is bound so callers can read Addr immediately.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	s.listener = listener
	s.running = true
	s.logger.Info("http server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.http.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.cfg.Addr
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	return s.http.Shutdown(ctx)
}

// handleHealth reports liveness. It returns 200 while the store responds and
// 503 once it does not, so orchestrators can restart the daemon.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["error"] = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
