package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// SWEEP OVERDUE TUITION JOB
// ══════════════════════════════════════════════════════════════════════════════

// OverdueSweeper moves pending tuition past its due date to overdue.
type OverdueSweeper interface {
	Handle(ctx context.Context) (int, error)
}

// SweepOverdueTuitionJob runs the overdue sweep, by default daily at midnight.
type SweepOverdueTuitionJob struct {
	sweeper OverdueSweeper
	metrics *FinanceMetrics
	logger  *zap.Logger
	timeout time.Duration

	lastMarked atomic.Int64
}

// NewSweepOverdueTuitionJob creates the job. timeout <= 0 means no limit.
func NewSweepOverdueTuitionJob(sweeper OverdueSweeper, metrics *FinanceMetrics, logger *zap.Logger, timeout time.Duration) *SweepOverdueTuitionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepOverdueTuitionJob{
		sweeper: sweeper,
		metrics: metrics,
		logger:  logger.Named("sweep_overdue_tuition"),
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *SweepOverdueTuitionJob) Name() string {
	return "sweep_overdue_tuition"
}

// Description returns a human-readable description.
func (j *SweepOverdueTuitionJob) Description() string {
	return "Marks pending tuition past its due date as overdue"
}

// Run executes the sweep.
func (j *SweepOverdueTuitionJob) Run(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, j.timeout)
	defer cancel()

	var marked int
	err := transactional(ctx, func(ctx context.Context) error {
		var err error
		marked, err = j.sweeper.Handle(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("sweep overdue tuition: %w", err)
	}

	j.lastMarked.Store(int64(marked))
	j.metrics.addTuitionOverdue(marked)
	j.logger.Info("overdue tuition swept", zap.Int("marked", marked))
	return nil
}

// LastMarked returns the number of rows the last successful run changed.
func (j *SweepOverdueTuitionJob) LastMarked() int {
	return int(j.lastMarked.Load())
}
