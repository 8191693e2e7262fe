// Package scheduler provides periodic job management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"firmup/internal/shared/config"
	"firmup/internal/shared/logger"
)

// SweepJob re-submits stalled upgrade operations. Execute returns the
// number of operations re-queued.
type SweepJob interface {
	Execute(ctx context.Context) (int, error)
}

// Manager owns the gocron scheduler instance and the jobs registered on
// it.
type Manager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	started   bool
	startedMu sync.Mutex
}

// NewManager creates an empty scheduler manager.
func NewManager(log logger.Interface) (*Manager, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Manager{scheduler: scheduler, logger: log}, nil
}

// RegisterSweepJob registers the periodic stalled-operation sweep. An
// operation stalls when its worker died mid-flight: it stays in-progress
// with no attempt ever finishing it.
func (m *Manager) RegisterSweepJob(cfg config.SweepConfig, job SweepJob) error {
	if !cfg.Enabled {
		m.logger.Infow("stalled operation sweep disabled")
		return nil
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			count, err := job.Execute(ctx)
			if err != nil {
				m.logger.Errorw("stalled operation sweep failed", "error", err)
				return
			}
			if count > 0 {
				m.logger.Infow("re-queued stalled upgrade operations", "count", count)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("stalled-operation-sweep"),
	)
	if err != nil {
		return err
	}
	m.logger.Infow("registered stalled operation sweep", "interval", interval)
	return nil
}

// Start begins job execution. Idempotent.
func (m *Manager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if m.started {
		return
	}
	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler started", "jobs", len(m.scheduler.Jobs()))
}

// Stop shuts the scheduler down, waiting for running jobs.
func (m *Manager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.scheduler.Shutdown()
}
