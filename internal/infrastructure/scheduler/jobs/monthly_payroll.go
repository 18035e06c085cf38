package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// PayrollRunner computes the current month's payroll.
type PayrollRunner interface {
	Handle(ctx context.Context, cmd command.RunPayrollCommand) (*command.RunPayrollResult, error)
}

// MonthlyPayrollJob runs payroll as the system principal. A run already in
// progress elsewhere is logged and not treated as a failure.
type MonthlyPayrollJob struct {
	runner  PayrollRunner
	metrics *FinanceMetrics
	logger  *zap.Logger
	timeout time.Duration
}

// NewMonthlyPayrollJob creates the job.
func NewMonthlyPayrollJob(runner PayrollRunner, metrics *FinanceMetrics, logger *zap.Logger, timeout time.Duration) *MonthlyPayrollJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonthlyPayrollJob{
		runner:  runner,
		metrics: metrics,
		logger:  logger.Named(command.RunPayrollJobName),
		timeout: timeout,
	}
}

// Name returns the job name.
func (j *MonthlyPayrollJob) Name() string {
	return command.RunPayrollJobName
}

// Description returns a human-readable description.
func (j *MonthlyPayrollJob) Description() string {
	return "Computes the monthly payroll of every teacher"
}

// Run executes the payroll run.
func (j *MonthlyPayrollJob) Run(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, j.timeout)
	defer cancel()

	var res *command.RunPayrollResult
	err := transactional(ctx, func(ctx context.Context) error {
		var err error
		res, err = j.runner.Handle(ctx, command.RunPayrollCommand{Actor: shared.SystemPrincipal()})
		return err
	})
	if shared.IsConflict(err) {
		j.logger.Warn("payroll run skipped", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("monthly payroll: %w", err)
	}

	j.metrics.addPayrolls(len(res.Payrolls))
	j.logger.Info("payroll computed",
		zap.String("run_id", res.RunID.String()),
		zap.Int("month", res.Month),
		zap.Int("year", res.Year),
		zap.Int("payrolls", len(res.Payrolls)),
	)
	return nil
}
