package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/schoolbook/schoolbook-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKGROUND RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// Runner executes work detached from the request that triggered it, such as
// a manager-initiated tuition run. Failures are logged and passed to the
// OnError hook; nothing is returned to the caller.
type Runner struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *Metrics
	timeout time.Duration
	onError func(name string, err error)

	mu     sync.Mutex
	closed bool
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Logger  *zap.Logger
	Metrics *Metrics

	// Timeout bounds every task (default: 10m).
	Timeout time.Duration

	// OnError receives every failure, after logging.
	OnError func(name string, err error)
}

// ErrRunnerClosed is logged when work is submitted after Shutdown.
var ErrRunnerClosed = errors.New("background runner is shut down")

// NewRunner creates a Runner.
func NewRunner(config RunnerConfig) *Runner {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:     ctx,
		cancel:  cancel,
		logger:  config.Logger.Named("runner"),
		metrics: config.Metrics,
		timeout: config.Timeout,
		onError: config.OnError,
	}
}

// Go starts fn in its own goroutine.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.fail(name, ErrRunnerClosed)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		ctx = logger.WithContext(ctx, r.logger.With(logger.Job(name)))

		done := r.metrics.start(name)
		err := r.run(ctx, name, fn)
		done(err)

		if err != nil {
			r.fail(name, err)
			return
		}
		r.logger.Debug("background task completed", logger.Job(name))
	}()
}

func (r *Runner) run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("background task %s panicked: %v", name, p)
		}
	}()
	return fn(ctx)
}

func (r *Runner) fail(name string, err error) {
	r.logger.Error("background task failed", logger.Job(name), zap.Error(err))
	if r.onError != nil {
		r.onError(name, err)
	}
}

// Wait blocks until every submitted task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting work and waits for running tasks. When ctx
// expires first the tasks are cancelled and ctx.Err() is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
