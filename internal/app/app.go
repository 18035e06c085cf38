// Package app assembles the command and query handlers of schoolbook from
// a store, a cache and a job lock. Transports and the worker depend on it
// instead of constructing handlers one by one.
package app

import (
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/command"
	"github.com/schoolbook/schoolbook-core/internal/application/query"
	"github.com/schoolbook/schoolbook-core/internal/application/uow"
)

// ScoreCache is both read by queries and invalidated by commands.
type ScoreCache interface {
	query.ScoreCache
	command.ScoreInvalidator
}

// Deps are the infrastructure the handlers run on.
type Deps struct {
	UnitOfWork uow.UnitOfWork

	// Reads are stores outside any transaction, used by queries.
	Reads uow.Stores

	// Cache may be nil.
	Cache ScoreCache

	// Locker may be nil, which allows concurrent financial runs.
	Locker command.Locker

	Runner command.BackgroundRunner
	Clock  command.Clock

	// LockTTL bounds how long a crashed financial run keeps its lock.
	LockTTL time.Duration
}

// Commands groups the write side.
type Commands struct {
	RecordEvaluation      *command.RecordEvaluationHandler
	Evaluations           *command.EvaluationEditHandler
	CreateBatchAttendance *command.CreateBatchAttendanceHandler
	UpdateLateAttendance  *command.UpdateLateAttendanceHandler
	GenerateTuition       *command.GenerateTuitionHandler
	Tuitions              *command.TuitionHandler
	RunPayroll            *command.RunPayrollHandler
	UpdatePayroll         *command.UpdatePayrollHandler
	SweepOverdueTuition   *command.SweepOverdueTuitionHandler
}

// Queries groups the read side.
type Queries struct {
	Scores      *query.ScoreSummaryHandler
	Evaluations *query.ListEvaluationsHandler
}

// Services is every handler wired to the same dependencies.
type Services struct {
	Commands Commands
	Queries  Queries
}

// New wires the handlers.
func New(d Deps) *Services {
	if d.LockTTL <= 0 {
		d.LockTTL = command.DefaultGenerateTuitionHandlerConfig().LockTTL
	}

	var (
		invalidator command.ScoreInvalidator
		reader      query.ScoreCache
	)
	if d.Cache != nil {
		invalidator, reader = d.Cache, d.Cache
	}

	return &Services{
		Commands: Commands{
			RecordEvaluation:      command.NewRecordEvaluationHandler(d.UnitOfWork, invalidator, d.Clock),
			Evaluations:           command.NewEvaluationEditHandler(d.UnitOfWork, invalidator, d.Clock),
			CreateBatchAttendance: command.NewCreateBatchAttendanceHandler(d.UnitOfWork, invalidator, d.Clock),
			UpdateLateAttendance:  command.NewUpdateLateAttendanceHandler(d.UnitOfWork, invalidator, d.Clock),
			GenerateTuition: command.NewGenerateTuitionHandler(d.UnitOfWork, d.Runner, d.Locker, d.Clock,
				command.GenerateTuitionHandlerConfig{LockTTL: d.LockTTL}),
			Tuitions:            command.NewTuitionHandler(d.UnitOfWork, d.Clock),
			RunPayroll:          command.NewRunPayrollHandler(d.UnitOfWork, d.Locker, d.Clock, d.LockTTL),
			UpdatePayroll:       command.NewUpdatePayrollHandler(d.UnitOfWork, d.Clock),
			SweepOverdueTuition: command.NewSweepOverdueTuitionHandler(d.UnitOfWork, d.Clock),
		},
		Queries: Queries{
			Scores:      query.NewScoreSummaryHandler(d.Reads.Evaluations, d.Reads.Directory, reader),
			Evaluations: query.NewListEvaluationsHandler(d.Reads.Evaluations, d.Reads.Directory),
		},
	}
}
