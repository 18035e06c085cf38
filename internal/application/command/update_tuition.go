package command

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TUITION MAINTENANCE
// Manual creation and updates. A paid tuition can no longer change.
// ══════════════════════════════════════════════════════════════════════════════

// CreateTuitionCommand bills one student outside a generation run.
type CreateTuitionCommand struct {
	Actor shared.Principal `json:"-"`

	StudentID shared.UserID `json:"student_id" validate:"gt=0"`
	Amount    finance.Money `json:"amount" validate:"gt=0"`
	Term      int           `json:"term" validate:"gte=1"`
	DueDate   time.Time     `json:"due_date" validate:"required"`
}

// Validate validates the command.
func (c CreateTuitionCommand) Validate() error {
	return validateStruct("create_tuition", c)
}

// UpdateTuitionCommand changes an unpaid tuition.
type UpdateTuitionCommand struct {
	Actor shared.Principal `json:"-"`

	ID      int64           `json:"id" validate:"gt=0"`
	Amount  *finance.Money  `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Term    *int            `json:"term,omitempty" validate:"omitempty,gte=1"`
	DueDate *time.Time      `json:"due_date,omitempty"`
	Status  *finance.Status `json:"status,omitempty" validate:"omitempty,oneof=pending paid overdue"`
}

// Validate validates the command.
func (c UpdateTuitionCommand) Validate() error {
	return validateStruct("update_tuition", c)
}

// TuitionHandler handles CreateTuitionCommand and UpdateTuitionCommand.
type TuitionHandler struct {
	uow   uow.UnitOfWork
	clock Clock
}

// NewTuitionHandler creates a new TuitionHandler.
func NewTuitionHandler(u uow.UnitOfWork, clock Clock) *TuitionHandler {
	return &TuitionHandler{uow: u, clock: clock}
}

// Create stores the tuition and notifies the parent, if any.
func (h *TuitionHandler) Create(ctx context.Context, cmd CreateTuitionCommand) (*finance.Tuition, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !shared.CanManage(cmd.Actor) {
		return nil, shared.Unauthorized("tuition", "Create", "only managers can create tuition")
	}

	now := h.clock.now()
	var created *finance.Tuition
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		student, err := s.Directory.Student(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("create_tuition: %w", err)
		}

		t, err := finance.NewTuition(cmd.StudentID, cmd.Amount, cmd.Term, cmd.DueDate, now)
		if err != nil {
			return fmt.Errorf("create_tuition: %w", err)
		}
		if err := s.Tuitions.Create(ctx, t); err != nil {
			return fmt.Errorf("create_tuition: failed to save tuition: %w", err)
		}

		if student.ParentID != nil {
			if err := s.Notifications.Create(ctx, tuitionNotice(*student.ParentID, student.FullName, t, now)); err != nil {
				return fmt.Errorf("create_tuition: failed to save notification: %w", err)
			}
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies the change. It fails with shared.ErrTuitionSettled when the
// tuition is paid and with shared.ErrTuitionNotFound when it does not exist.
func (h *TuitionHandler) Update(ctx context.Context, cmd UpdateTuitionCommand) (*finance.Tuition, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !shared.CanManage(cmd.Actor) {
		return nil, shared.Unauthorized("tuition", "Update", "only managers can update tuition")
	}

	var updated *finance.Tuition
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		t, err := s.Tuitions.GetForUpdate(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("update_tuition: %w", err)
		}
		patch := finance.TuitionPatch{
			Amount:  cmd.Amount,
			Term:    cmd.Term,
			DueDate: cmd.DueDate,
			Status:  cmd.Status,
		}
		if err := t.Apply(patch, h.clock.now()); err != nil {
			return fmt.Errorf("update_tuition: %w", err)
		}
		if err := s.Tuitions.Update(ctx, t); err != nil {
			return fmt.Errorf("update_tuition: failed to save tuition: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
