package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/scheduler/jobs"
)

type sweeperFunc func(ctx context.Context) (int, error)

func (f sweeperFunc) Handle(ctx context.Context) (int, error) { return f(ctx) }

func TestSweepOverdueTuitionJob_RetriesTransientFailures(t *testing.T) {
	calls := 0
	sweeper := sweeperFunc(func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, shared.WrapError("postgres", "UnitOfWork", shared.ErrServiceUnavailable, "aborted", nil)
		}
		return 3, nil
	})

	reg := prometheus.NewRegistry()
	job := jobs.NewSweepOverdueTuitionJob(sweeper, jobs.NewFinanceMetrics(reg), nil, time.Minute)
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 3, job.LastMarked())
	assert.Equal(t, "sweep_overdue_tuition", job.Name())

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "schoolbook_tuition_overdue_total" {
			assert.Equal(t, 3.0, f.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestSweepOverdueTuitionJob_DoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	sweeper := sweeperFunc(func(context.Context) (int, error) {
		calls++
		return 0, shared.WrapError("finance", "Sweep", shared.ErrValidation, "bad", nil)
	})

	job := jobs.NewSweepOverdueTuitionJob(sweeper, nil, nil, 0)
	require.Error(t, job.Run(context.Background()))
	assert.Equal(t, 1, calls)
}

type payrollFunc func(ctx context.Context, cmd command.RunPayrollCommand) (*command.RunPayrollResult, error)

func (f payrollFunc) Handle(ctx context.Context, cmd command.RunPayrollCommand) (*command.RunPayrollResult, error) {
	return f(ctx, cmd)
}

func TestMonthlyPayrollJob(t *testing.T) {
	var got command.RunPayrollCommand
	runner := payrollFunc(func(_ context.Context, cmd command.RunPayrollCommand) (*command.RunPayrollResult, error) {
		got = cmd
		return &command.RunPayrollResult{RunID: finance.NewRunID(), Month: 9, Year: 2024, Payrolls: []*finance.Payroll{{}, {}}}, nil
	})

	metrics := jobs.NewFinanceMetrics(nil)
	job := jobs.NewMonthlyPayrollJob(runner, metrics, nil, time.Minute)
	require.NoError(t, job.Run(context.Background()))
	assert.True(t, got.Actor.Has(shared.RoleManager))
	assert.Equal(t, command.RunPayrollJobName, job.Name())
}

func TestMonthlyPayrollJob_ConflictIsSkipped(t *testing.T) {
	runner := payrollFunc(func(context.Context, command.RunPayrollCommand) (*command.RunPayrollResult, error) {
		return nil, shared.WrapError("finance", "RunPayroll", shared.ErrConflict, "run in progress", nil)
	})

	job := jobs.NewMonthlyPayrollJob(runner, nil, nil, 0)
	assert.NoError(t, job.Run(context.Background()))
}

type generatorFunc func(ctx context.Context, cmd command.GenerateTuitionCommand, runID finance.RunID) (*command.GenerateTuitionResult, error)

func (f generatorFunc) Run(ctx context.Context, cmd command.GenerateTuitionCommand, runID finance.RunID) (*command.GenerateTuitionResult, error) {
	return f(ctx, cmd, runID)
}

func TestGenerateTuitionJob_Command(t *testing.T) {
	job := jobs.NewGenerateTuitionJob(nil, nil, nil, nil, jobs.GenerateTuitionJobConfig{DueDays: 14})

	// 2024-09-30 20:00 UTC is already October 1st in school time.
	cmd := job.Command(time.Date(2024, 9, 30, 20, 0, 0, 0, time.UTC))
	assert.Equal(t, 10, cmd.Term)
	assert.Equal(t, time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC), cmd.DueDate)
	assert.True(t, cmd.Actor.Has(shared.RoleManager))
	require.NoError(t, cmd.Validate())
}

func TestGenerateTuitionJob_Run(t *testing.T) {
	now := time.Date(2024, 9, 2, 3, 0, 0, 0, time.UTC)
	var runIDs []finance.RunID
	gen := generatorFunc(func(_ context.Context, cmd command.GenerateTuitionCommand, runID finance.RunID) (*command.GenerateTuitionResult, error) {
		runIDs = append(runIDs, runID)
		assert.Equal(t, 9, cmd.Term)
		return &command.GenerateTuitionResult{RunID: runID, Created: 2, Notified: 1}, nil
	})

	reg := prometheus.NewRegistry()
	job := jobs.NewGenerateTuitionJob(gen, jobs.NewFinanceMetrics(reg), nil,
		func() time.Time { return now }, jobs.GenerateTuitionJobConfig{DueDays: 10})

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, runIDs, 1)
	assert.NotEqual(t, finance.RunID{}, runIDs[0])

	count, err := testutil.GatherAndCount(reg, "schoolbook_tuition_created_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
