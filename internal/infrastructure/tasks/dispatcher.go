// Package tasks runs upgrade operations on a bounded worker pool with a
// retry contract: recoverable failures are re-submitted with exponential
// backoff and full jitter, and the final attempt runs in no-retry mode so
// the operation reaches a terminal status.
package tasks

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"firmup/internal/domain/firmware"
	"firmup/internal/shared/config"
	"firmup/internal/shared/goroutine"
	"firmup/internal/shared/logger"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 256
	defaultMaxRetries = 4
	defaultBaseDelay  = 30 * time.Second
	defaultMaxDelay   = 10 * time.Minute
)

// Executor runs one attempt of an upgrade operation. recoverable=false
// tells the attempt it is the last one: transient failures must then be
// recorded as terminal instead of being raised for retry.
type Executor interface {
	ExecuteUpgrade(ctx context.Context, operationSID string, recoverable bool) error
}

var (
	// ErrQueueFull is returned by Submit when the dispatcher cannot
	// accept more work without blocking.
	ErrQueueFull = errors.New("upgrade queue is full")

	// ErrStopped is returned by Submit after Stop has been called.
	ErrStopped = errors.New("upgrade dispatcher is stopped")
)

// Dispatcher is the in-process task queue for upgrade operations.
type Dispatcher struct {
	exec       Executor
	log        logger.Interface
	workers    int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration

	queue  chan string
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewDispatcher builds a dispatcher; zero config fields fall back to
// defaults.
func NewDispatcher(cfg config.TasksConfig, exec Executor, log logger.Interface) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := cfg.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	return &Dispatcher{
		exec:       exec,
		log:        log,
		workers:    workers,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		queue:      make(chan string, queueSize),
	}
}

// Start launches the worker pool. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		goroutine.SafeGo(d.log, "upgrade-worker", func() {
			defer d.wg.Done()
			d.work(runCtx)
		})
	}
	d.log.Infow("upgrade dispatcher started", "workers", d.workers)
}

// Submit enqueues an operation for execution. Never blocks. The mutex
// orders Submit against Stop: once Stop has closed the queue no send can
// race it.
func (d *Dispatcher) Submit(operationSID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrStopped
	}
	select {
	case d.queue <- operationSID:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains the pool: no new work is accepted and in-flight operations
// run to completion.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	d.cancel()
	d.log.Infow("upgrade dispatcher stopped")
}

func (d *Dispatcher) work(ctx context.Context) {
	for sid := range d.queue {
		d.runWithRetries(ctx, sid)
	}
}

// runWithRetries drives all attempts for one operation. Every attempt
// re-enters the use case from the top; idempotence is the executor's
// responsibility.
func (d *Dispatcher) runWithRetries(ctx context.Context, sid string) {
	for attempt := 0; ; attempt++ {
		lastAttempt := attempt >= d.maxRetries
		err := d.exec.ExecuteUpgrade(ctx, sid, !lastAttempt)
		if err == nil {
			return
		}
		if !firmware.IsRecoverable(err) || lastAttempt {
			d.log.Errorw("upgrade operation failed",
				"operation", sid, "attempt", attempt+1, "error", err)
			return
		}
		delay := d.backoff(attempt)
		d.log.Warnw("upgrade attempt failed, will retry",
			"operation", sid, "attempt", attempt+1, "retry_in", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// backoff computes the delay before the given retry using exponential
// growth capped at maxDelay, with full jitter to spread reconnection
// storms across a fleet.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	capped := d.baseDelay << uint(attempt)
	if capped <= 0 || capped > d.maxDelay {
		capped = d.maxDelay
	}
	return time.Duration(rand.Int63n(int64(capped) + 1))
}
