package accountdb

import (
	"context"
	"log"
	"sync"
	"time"
)

// Logger is the logging interface injected into storage components.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// DefaultLogger logs through the standard library logger.
type DefaultLogger struct {
	logger *log.Logger
}

func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{logger: log.Default()}
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) {
	l.logger.Println(append([]interface{}{"[DEBUG]", msg}, fields...)...)
}

func (l *DefaultLogger) Info(msg string, fields ...interface{}) {
	l.logger.Println(append([]interface{}{"[INFO]", msg}, fields...)...)
}

func (l *DefaultLogger) Warn(msg string, fields ...interface{}) {
	l.logger.Println(append([]interface{}{"[WARN]", msg}, fields...)...)
}

func (l *DefaultLogger) Error(msg string, fields ...interface{}) {
	l.logger.Println(append([]interface{}{"[ERROR]", msg}, fields...)...)
}

// NoOpLogger discards all log output. Useful in tests.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (NoOpLogger) Info(msg string, fields ...interface{})  {}
func (NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (NoOpLogger) Error(msg string, fields ...interface{}) {}

// Metrics is the monitoring interface for store operations.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string)
	RecordDuration(name string, duration time.Duration, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
}

// NoOpMetrics discards all measurements.
type NoOpMetrics struct{}

func (m *NoOpMetrics) IncrementCounter(name string, tags map[string]string)                       {}
func (m *NoOpMetrics) RecordDuration(name string, duration time.Duration, tags map[string]string) {}
func (m *NoOpMetrics) SetGauge(name string, value float64, tags map[string]string)                {}

// Manager wraps a Store with lifecycle management, a background health
// checker, and retry execution for transient failures.
type Manager struct {
	store   Store
	backend string
	logger  Logger
	metrics Metrics

	healthCheckInterval time.Duration
	healthCtx           context.Context
	healthCancel        context.CancelFunc
	healthWg            sync.WaitGroup

	maxRetries    int
	retryDelay    time.Duration
	retryMaxDelay time.Duration

	mu        sync.RWMutex
	connected bool
	lastError error
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithHealthCheckInterval sets the background health check interval.
func WithHealthCheckInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.healthCheckInterval = interval
	}
}

// WithRetryPolicy sets the retry count and backoff bounds used by
// ExecuteWithRetry.
func WithRetryPolicy(maxRetries int, delay, maxDelay time.Duration) ManagerOption {
	return func(m *Manager) {
		m.maxRetries = maxRetries
		m.retryDelay = delay
		m.retryMaxDelay = maxDelay
	}
}

// NewManager creates a manager around a backend store. The backend name is
// used only for log and metric tags.
func NewManager(store Store, backend string, options ...ManagerOption) *Manager {
	manager := &Manager{
		store:               store,
		backend:             backend,
		logger:              NewDefaultLogger(),
		metrics:             &NoOpMetrics{},
		healthCheckInterval: time.Minute,
		maxRetries:          3,
		retryDelay:          100 * time.Millisecond,
		retryMaxDelay:       5 * time.Second,
	}

	for _, option := range options {
		option(manager)
	}

	return manager
}

// Open opens the underlying store and starts the health checker.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return nil
	}

	if err := m.store.Open(ctx); err != nil {
		m.lastError = err
		m.logger.Error("failed to open store", "backend", m.backend, "error", err)
		m.metrics.IncrementCounter("store.open.failed", map[string]string{"backend": m.backend})
		return WrapError(err, "open_store")
	}

	if err := m.store.System().Ping(ctx); err != nil {
		m.lastError = err
		m.store.Close(ctx)
		m.logger.Error("store ping failed after open", "backend", m.backend, "error", err)
		return WrapError(err, "initial_health_check")
	}

	m.connected = true
	m.lastError = nil
	m.startHealthChecker()

	m.logger.Info("store opened", "backend", m.backend)
	m.metrics.IncrementCounter("store.open.ok", map[string]string{"backend": m.backend})
	return nil
}

// Close stops the health checker and closes the store.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	// An in-flight health check takes read locks, so the checker must be
	// fully stopped before the write lock is taken for the close.
	m.stopHealthChecker()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return nil
	}

	if err := m.store.Close(ctx); err != nil {
		m.logger.Error("failed to close store", "backend", m.backend, "error", err)
		return WrapError(err, "close_store")
	}

	m.connected = false
	m.lastError = nil
	m.logger.Info("store closed", "backend", m.backend)
	return nil
}

// IsConnected reports whether Open succeeded and Close has not been called.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// LastError returns the most recent open or health check failure.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

// Store returns the managed store.
func (m *Manager) Store() Store {
	return m.store
}

// HealthCheck pings the store and records the outcome.
func (m *Manager) HealthCheck(ctx context.Context) error {
	start := time.Now()
	defer func() {
		m.metrics.RecordDuration("store.health_check.duration", time.Since(start),
			map[string]string{"backend": m.backend})
	}()

	if !m.IsConnected() {
		return NewConnectionError("health_check", "store is closed", nil).WithCode(CodeStoreClosed)
	}

	if err := m.store.System().Ping(ctx); err != nil {
		m.mu.Lock()
		m.lastError = err
		m.mu.Unlock()

		m.logger.Error("health check failed", "backend", m.backend, "error", err)
		m.metrics.IncrementCounter("store.health_check.failed", map[string]string{"backend": m.backend})
		return WrapError(err, "health_check")
	}

	m.metrics.IncrementCounter("store.health_check.ok", map[string]string{"backend": m.backend})
	return nil
}

// ExecuteWithRetry runs operation, retrying retryable failures with linear
// backoff capped at the configured maximum delay.
func (m *Manager) ExecuteWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(attempt) * m.retryDelay
			if delay > m.retryMaxDelay {
				delay = m.retryMaxDelay
			}

			m.logger.Debug("retrying store operation",
				"attempt", attempt, "delay", delay, "last_error", lastErr)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				m.metrics.IncrementCounter("store.operation.retry_success",
					map[string]string{"backend": m.backend})
			}
			return nil
		}

		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	return WrapError(lastErr, "execute_with_retry")
}

func (m *Manager) startHealthChecker() {
	m.healthCtx, m.healthCancel = context.WithCancel(context.Background())

	m.healthWg.Add(1)
	go func() {
		defer m.healthWg.Done()

		ticker := time.NewTicker(m.healthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.healthCtx.Done():
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(m.healthCtx, 10*time.Second)
				if err := m.HealthCheck(ctx); err != nil {
					m.logger.Error("background health check failed", "error", err)
				}
				cancel()
			}
		}
	}()
}

func (m *Manager) stopHealthChecker() {
	if m.healthCancel != nil {
		m.healthCancel()
		m.healthWg.Wait()
	}
}
