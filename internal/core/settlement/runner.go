package settlement

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultTickInterval is the default delay between settlement passes.
const DefaultTickInterval = 10 * time.Second

// Runner drives an engine on a fixed interval. Ticks never overlap: the
// timer restarts only after a tick completes, so an overrun postpones the
// next pass instead of stacking a second one.
type Runner struct {
	engine   *Engine
	interval time.Duration
	logger   Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a runner ticking the engine every interval.
func NewRunner(engine *Engine, interval time.Duration, options ...RunnerOption) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	runner := &Runner{
		engine:   engine,
		interval: interval,
		logger:   nopLogger{},
	}
	for _, option := range options {
		option(runner)
	}
	return runner
}

// Start launches the tick loop. It returns immediately; the loop stops when
// ctx is canceled or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return
	}
	r.started = true

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.Info("settlement runner started",
		"shard_index", r.engine.shardIndex,
		"shard_count", r.engine.shardCount,
		"interval", r.interval)

	go r.loop(loopCtx)
}

// Stop cancels the loop and waits for an in-flight tick to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done

	r.mu.Lock()
	r.started = false
	r.mu.Unlock()

	r.logger.Info("settlement runner stopped")
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if _, err := r.engine.Tick(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				r.logger.Error("settlement tick failed", "error", err)
			}
			timer.Reset(r.interval)
		}
	}
}
