package command

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RUN PAYROLL COMMAND
// Computes the current month's payroll for every teacher in one transaction.
// Classes taught counts every class currently assigned to the teacher.
// ══════════════════════════════════════════════════════════════════════════════

// RunPayrollJobName names the run and its lock.
const RunPayrollJobName = "run_payroll"

// RunPayrollCommand triggers a payroll run for the current month.
type RunPayrollCommand struct {
	Actor shared.Principal `json:"-"`
}

// RunPayrollResult summarizes the run.
type RunPayrollResult struct {
	RunID    finance.RunID
	Month    int
	Year     int
	Payrolls []*finance.Payroll
}

// RunPayrollHandler handles the RunPayrollCommand.
type RunPayrollHandler struct {
	uow     uow.UnitOfWork
	locker  Locker
	clock   Clock
	lockTTL time.Duration
}

// NewRunPayrollHandler creates a new RunPayrollHandler.
// A nil locker disables the concurrent-run guard.
func NewRunPayrollHandler(u uow.UnitOfWork, locker Locker, clock Clock, lockTTL time.Duration) *RunPayrollHandler {
	if lockTTL == 0 {
		lockTTL = 10 * time.Minute
	}
	return &RunPayrollHandler{uow: u, locker: locker, clock: clock, lockTTL: lockTTL}
}

// Handle executes the run and returns an explicit error when anything fails.
func (h *RunPayrollHandler) Handle(ctx context.Context, cmd RunPayrollCommand) (*RunPayrollResult, error) {
	if !shared.CanManage(cmd.Actor) {
		return nil, shared.Unauthorized("payroll", "Run", "only managers can run payroll")
	}

	release, err := acquire(ctx, h.locker, RunPayrollJobName, h.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	now := timeutil.ToSchool(h.clock.now())
	runID := finance.NewRunID()
	result := &RunPayrollResult{RunID: runID, Month: int(now.Month()), Year: now.Year()}

	err = h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		teachers, err := s.Directory.Teachers(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to load teachers: %w", RunPayrollJobName, err)
		}
		if len(teachers) == 0 {
			return nil
		}
		counts, err := s.Directory.ClassCountsByTeacher(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to count classes: %w", RunPayrollJobName, err)
		}

		payrolls := make([]*finance.Payroll, len(teachers))
		for i, t := range teachers {
			p := finance.ComputePayroll(t.ID, counts[t.ID], t.BaseSalaryPerClass, t.RewardBonus, now)
			id := runID
			p.RunID = &id
			payrolls[i] = p
		}
		if err := s.Payrolls.CreateBatch(ctx, payrolls); err != nil {
			return fmt.Errorf("%s: failed to save payroll: %w", RunPayrollJobName, err)
		}

		notes := make([]*notification.Notification, len(payrolls))
		for i, p := range payrolls {
			notes[i] = payrollNotice(p, now)
		}
		if err := s.Notifications.CreateBatch(ctx, notes); err != nil {
			return fmt.Errorf("%s: failed to save notifications: %w", RunPayrollJobName, err)
		}

		result.Payrolls = payrolls
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func payrollNotice(p *finance.Payroll, now time.Time) *notification.Notification {
	return &notification.Notification{
		ReceiverID: p.TeacherID,
		Content:    notification.PayrollComputed(p.Month, p.Year, p.Total().Int64(), timeutil.ToSchool(p.SentAt)),
		Type:       notification.TypePayroll,
		SentAt:     now,
		Source:     &notification.Source{Kind: notification.SourcePayroll, ID: p.ID},
	}
}
