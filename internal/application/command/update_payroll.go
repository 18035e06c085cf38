package command

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// UpdatePayrollCommand changes an unpaid payroll. The total is always derived
// from base salary and bonus, so it cannot be set directly.
type UpdatePayrollCommand struct {
	Actor shared.Principal `json:"-"`

	ID              int64           `json:"id" validate:"gt=0"`
	Month           *int            `json:"month,omitempty" validate:"omitempty,gte=1,lte=12"`
	BaseSalaryTotal *finance.Money  `json:"total_base_salary,omitempty" validate:"omitempty,gte=0"`
	RewardBonus     *finance.Money  `json:"reward_bonus,omitempty" validate:"omitempty,gte=0"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	Status          *finance.Status `json:"status,omitempty" validate:"omitempty,oneof=pending paid"`
}

// Validate validates the command.
func (c UpdatePayrollCommand) Validate() error {
	return validateStruct("update_payroll", c)
}

// UpdatePayrollHandler handles the UpdatePayrollCommand.
type UpdatePayrollHandler struct {
	uow   uow.UnitOfWork
	clock Clock
}

// NewUpdatePayrollHandler creates a new UpdatePayrollHandler.
func NewUpdatePayrollHandler(u uow.UnitOfWork, clock Clock) *UpdatePayrollHandler {
	return &UpdatePayrollHandler{uow: u, clock: clock}
}

// Handle applies the change and sends the teacher the recomputed total.
// It fails with shared.ErrPayrollSettled when the payroll is paid.
func (h *UpdatePayrollHandler) Handle(ctx context.Context, cmd UpdatePayrollCommand) (*finance.Payroll, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !shared.CanManage(cmd.Actor) {
		return nil, shared.Unauthorized("payroll", "Update", "only managers can update payroll")
	}

	now := h.clock.now()
	var updated *finance.Payroll
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		p, err := s.Payrolls.GetForUpdate(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("update_payroll: %w", err)
		}
		patch := finance.PayrollPatch{
			Month:           cmd.Month,
			BaseSalaryTotal: cmd.BaseSalaryTotal,
			RewardBonus:     cmd.RewardBonus,
			SentAt:          cmd.SentAt,
			Status:          cmd.Status,
		}
		if err := p.Apply(patch); err != nil {
			return fmt.Errorf("update_payroll: %w", err)
		}
		if err := s.Payrolls.Update(ctx, p); err != nil {
			return fmt.Errorf("update_payroll: failed to save payroll: %w", err)
		}
		if err := s.Notifications.Create(ctx, payrollNotice(p, now)); err != nil {
			return fmt.Errorf("update_payroll: failed to save notification: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
