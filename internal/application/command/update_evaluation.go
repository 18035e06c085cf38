package command

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE / DELETE EVALUATION
// Only a manager or the teacher who wrote the row may change it.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateEvaluationCommand replaces deltas, content or date of a ledger row.
type UpdateEvaluationCommand struct {
	Actor shared.Principal `json:"-"`

	ID              int64            `json:"id" validate:"gt=0"`
	Type            *evaluation.Type `json:"type,omitempty" validate:"omitempty,oneof=initial study discipline"`
	StudyPoint      *int             `json:"study_point,omitempty"`
	DisciplinePoint *int             `json:"discipline_point,omitempty"`
	Content         *string          `json:"content,omitempty"`
	Date            *time.Time       `json:"date,omitempty"`
}

// Validate validates the command.
func (c UpdateEvaluationCommand) Validate() error {
	return validateStruct("update_evaluation", c)
}

func (c UpdateEvaluationCommand) patch() evaluation.Patch {
	return evaluation.Patch{
		Type:            c.Type,
		StudyPoint:      c.StudyPoint,
		DisciplinePoint: c.DisciplinePoint,
		Content:         c.Content,
		Date:            c.Date,
	}
}

// DeleteEvaluationCommand removes a ledger row.
type DeleteEvaluationCommand struct {
	Actor shared.Principal `json:"-"`
	ID    int64            `json:"id" validate:"gt=0"`
}

// Validate validates the command.
func (c DeleteEvaluationCommand) Validate() error {
	return validateStruct("delete_evaluation", c)
}

// EvaluationEditHandler handles UpdateEvaluationCommand and DeleteEvaluationCommand.
type EvaluationEditHandler struct {
	uow   uow.UnitOfWork
	cache ScoreInvalidator
	clock Clock
}

// NewEvaluationEditHandler creates a new EvaluationEditHandler.
func NewEvaluationEditHandler(u uow.UnitOfWork, cache ScoreInvalidator, clock Clock) *EvaluationEditHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &EvaluationEditHandler{uow: u, cache: cache, clock: clock}
}

func canEdit(actor shared.Principal, e *evaluation.Evaluation) bool {
	return actor.Has(shared.RoleManager) || (actor.Has(shared.RoleTeacher) && actor.ID == e.TeacherID)
}

// Update applies the patch and returns the stored row.
func (h *EvaluationEditHandler) Update(ctx context.Context, cmd UpdateEvaluationCommand) (*evaluation.Evaluation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *evaluation.Evaluation
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		eval, err := s.Evaluations.GetByID(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("update_evaluation: %w", err)
		}
		if !canEdit(cmd.Actor, eval) {
			return shared.Unauthorized("evaluation", "Update", "only a manager or the author can change an evaluation")
		}
		if err := eval.Apply(cmd.patch(), h.clock.now()); err != nil {
			return fmt.Errorf("update_evaluation: %w", err)
		}
		if err := s.Evaluations.Update(ctx, eval); err != nil {
			return fmt.Errorf("update_evaluation: failed to save evaluation: %w", err)
		}
		updated = eval
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateAll(ctx, h.cache, updated.StudentID)
	return updated, nil
}

// Delete removes the row.
func (h *EvaluationEditHandler) Delete(ctx context.Context, cmd DeleteEvaluationCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	var studentID shared.UserID
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		eval, err := s.Evaluations.GetByID(ctx, cmd.ID)
		if err != nil {
			return fmt.Errorf("delete_evaluation: %w", err)
		}
		if !canEdit(cmd.Actor, eval) {
			return shared.Unauthorized("evaluation", "Delete", "only a manager or the author can delete an evaluation")
		}
		if err := s.Evaluations.Delete(ctx, cmd.ID); err != nil {
			return fmt.Errorf("delete_evaluation: %w", err)
		}
		studentID = eval.StudentID
		return nil
	})
	if err != nil {
		return err
	}

	invalidateAll(ctx, h.cache, studentID)
	return nil
}
