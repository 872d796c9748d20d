package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthChecker reports whether the backing store is reachable. Satisfied by
// the store manager.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

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

const (
	// healthWatchInterval is how often the serving status is refreshed from
	// the store.
	healthWatchInterval = 5 * time.Second

	// healthCheckTimeout bounds a single store probe.
	healthCheckTimeout = 3 * time.Second
)

// Server wraps a grpc.Server exposing the health service.
type Server struct {
	mu sync.RWMutex

	// grpcServer is the underlying gRPC server
	grpcServer *grpc.Server

	// healthServer answers grpc.health.v1 checks
	healthServer *health.Server

	// checker drives the serving status
	checker HealthChecker

	// config holds the server configuration
	config *ServerConfig

	logger Logger

	// listener is the network listener
	listener net.Listener

	// running indicates if the server is currently running
	running bool

	// watchDone stops the health watcher goroutine
	watchDone chan struct{}
	watchWg   sync.WaitGroup
}

// ServerOption is a function that configures a Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new gRPC server with the given configuration. The
// checker may be nil, in which case the server always reports SERVING.
func NewServer(cfg *ServerConfig, checker HealthChecker, options ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.MaxSendMsgSize),
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	server := &Server{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		checker:      checker,
		config:       cfg,
		logger:       nopLogger{},
		running:      false,
	}
	for _, option := range options {
		option(server)
	}

	return server, nil
}

// Start starts the gRPC server and begins accepting connections.
// This method blocks until the server is stopped or an error occurs.
func (s *Server) Start() error {
	listener, err := s.begin()
	if err != nil {
		return err
	}

	return s.grpcServer.Serve(listener)
}

// StartAsync starts the gRPC server in a goroutine and returns immediately.
// Returns an error if the server is already running or fails to start.
func (s *Server) StartAsync() error {
	listener, err := s.begin()
	if err != nil {
		return err
	}

	go func() {
		if err := s.grpcServer.Serve(listener); err != nil {
			s.logger.Error("grpc server stopped", "error", err)
		}
	}()

	return nil
}

// begin binds the listener, seeds the serving status, and launches the
// health watcher.
func (s *Server) begin() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, errors.New("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return nil, err
	}

	s.listener = listener
	s.running = true
	s.watchDone = make(chan struct{})

	s.updateServingStatus()
	s.watchWg.Add(1)
	go s.watchHealth(s.watchDone)

	s.logger.Info("grpc server listening", "addr", listener.Addr().String())
	return listener, nil
}

// Stop gracefully stops the gRPC server.
// It stops accepting new connections and waits for existing connections to complete.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	// The watcher must be drained first so a racing probe cannot flip the
	// status back to SERVING.
	close(s.watchDone)
	s.watchWg.Wait()
	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
	s.running = false
}

// StopNow immediately stops the gRPC server without waiting for connections.
func (s *Server) StopNow() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.watchDone)
	s.watchWg.Wait()
	s.grpcServer.Stop()
	s.running = false
}

// IsRunning returns true if the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the address the server is listening on.
// Returns empty string if the server is not running.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// GetGRPCServer returns the underlying grpc.Server.
// This can be used to register additional services before Start.
func (s *Server) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}

// watchHealth refreshes the serving status until done closes.
func (s *Server) watchHealth(done <-chan struct{}) {
	defer s.watchWg.Done()

	ticker := time.NewTicker(healthWatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.updateServingStatus()
		}
	}
}

// updateServingStatus probes the store and mirrors the result into the
// health service.
func (s *Server) updateServingStatus() {
	status := healthpb.HealthCheckResponse_SERVING

	if s.checker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
		err := s.checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			s.logger.Warn("store health check failed", "error", err)
		}
	}

	s.healthServer.SetServingStatus("", status)
}
