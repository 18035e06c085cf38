package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// TuitionGenerator creates tuition for every actively enrolled student.
type TuitionGenerator interface {
	Run(ctx context.Context, cmd command.GenerateTuitionCommand, runID finance.RunID) (*command.GenerateTuitionResult, error)
}

// GenerateTuitionJob bills the current month. The term is the month number
// in school time and the due date is DueDays after the first of the month.
type GenerateTuitionJob struct {
	generator TuitionGenerator
	metrics   *FinanceMetrics
	logger    *zap.Logger
	clock     command.Clock
	dueDays   int
	timeout   time.Duration
}

// GenerateTuitionJobConfig configures GenerateTuitionJob.
type GenerateTuitionJobConfig struct {
	// DueDays is added to the first day of the billed month.
	DueDays int
	Timeout time.Duration
}

// NewGenerateTuitionJob creates the job. A nil clock uses the wall clock.
func NewGenerateTuitionJob(generator TuitionGenerator, metrics *FinanceMetrics, logger *zap.Logger, clock command.Clock, config GenerateTuitionJobConfig) *GenerateTuitionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &GenerateTuitionJob{
		generator: generator,
		metrics:   metrics,
		logger:    logger.Named(command.GenerateTuitionJobName),
		clock:     clock,
		dueDays:   config.DueDays,
		timeout:   config.Timeout,
	}
}

// Name returns the job name.
func (j *GenerateTuitionJob) Name() string {
	return command.GenerateTuitionJobName
}

// Description returns a human-readable description.
func (j *GenerateTuitionJob) Description() string {
	return "Creates this month's tuition for every actively enrolled student"
}

// Command returns the command the job would issue at now.
func (j *GenerateTuitionJob) Command(now time.Time) command.GenerateTuitionCommand {
	local := timeutil.ToSchool(now)
	return command.GenerateTuitionCommand{
		Actor:   shared.SystemPrincipal(),
		Term:    int(local.Month()),
		DueDate: timeutil.DueDate(timeutil.StartOfMonth(local), j.dueDays),
	}
}

// Run executes the tuition run.
func (j *GenerateTuitionJob) Run(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, j.timeout)
	defer cancel()

	cmd := j.Command(j.clock())
	runID := finance.NewRunID()

	var res *command.GenerateTuitionResult
	err := transactional(ctx, func(ctx context.Context) error {
		var err error
		res, err = j.generator.Run(ctx, cmd, runID)
		return err
	})
	if shared.IsConflict(err) {
		j.logger.Warn("tuition run skipped", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("generate tuition: %w", err)
	}

	j.metrics.addTuitionCreated(res.Created)
	j.logger.Info("tuition generated",
		zap.String("run_id", runID.String()),
		zap.Int("term", cmd.Term),
		zap.Time("due_date", cmd.DueDate),
		zap.Int("created", res.Created),
		zap.Int("notified", res.Notified),
		zap.Int("skipped", res.Skipped),
	)
	return nil
}
