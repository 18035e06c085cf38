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
// RECORD EVALUATION COMMAND
// Appends one delta row to the score ledger. Sign and magnitude of the deltas
// are not restricted here.
// ══════════════════════════════════════════════════════════════════════════════

// RecordEvaluationCommand contains the data of a new ledger row.
type RecordEvaluationCommand struct {
	// Actor is the teacher recording the evaluation.
	Actor shared.Principal `json:"-"`

	StudentID       shared.UserID   `json:"student_id" validate:"gt=0"`
	ClassID         shared.ClassID  `json:"class_id" validate:"gt=0"`
	Type            evaluation.Type `json:"type" validate:"required,oneof=initial study discipline"`
	StudyPoint      int             `json:"study_point"`
	DisciplinePoint int             `json:"discipline_point"`
	Content         string          `json:"content"`
	Date            time.Time       `json:"date" validate:"required"`
}

// Validate validates the command.
func (c RecordEvaluationCommand) Validate() error {
	return validateStruct("record_evaluation", c)
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordEvaluationHandler handles the RecordEvaluationCommand.
type RecordEvaluationHandler struct {
	uow   uow.UnitOfWork
	cache ScoreInvalidator
	clock Clock
}

// NewRecordEvaluationHandler creates a new RecordEvaluationHandler.
func NewRecordEvaluationHandler(u uow.UnitOfWork, cache ScoreInvalidator, clock Clock) *RecordEvaluationHandler {
	if cache == nil {
		cache = noopInvalidator{}
	}
	return &RecordEvaluationHandler{uow: u, cache: cache, clock: clock}
}

// Handle executes the record evaluation command.
func (h *RecordEvaluationHandler) Handle(ctx context.Context, cmd RecordEvaluationCommand) (*evaluation.Evaluation, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if !cmd.Actor.Has(shared.RoleTeacher) {
		return nil, shared.Unauthorized("evaluation", "Record", "only teachers can record evaluations")
	}

	now := h.clock.now()
	eval := &evaluation.Evaluation{
		StudentID:       cmd.StudentID,
		TeacherID:       cmd.Actor.ID,
		ClassID:         cmd.ClassID,
		Type:            cmd.Type,
		StudyPoint:      cmd.StudyPoint,
		DisciplinePoint: cmd.DisciplinePoint,
		Content:         cmd.Content,
		Date:            evaluation.DateOnly(cmd.Date),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		class, err := s.Directory.Class(ctx, cmd.ClassID)
		if err != nil {
			return fmt.Errorf("record_evaluation: failed to load class: %w", err)
		}
		if class.TeacherID != cmd.Actor.ID {
			return shared.Unauthorized("evaluation", "Record", "teacher does not teach this class")
		}

		enrolled, err := s.Directory.IsActivelyEnrolled(ctx, cmd.StudentID, cmd.ClassID)
		if err != nil {
			return fmt.Errorf("record_evaluation: failed to check enrollment: %w", err)
		}
		if !enrolled {
			return shared.Unauthorized("evaluation", "Record", "student is not actively enrolled in this class")
		}

		if err := s.Evaluations.Create(ctx, eval); err != nil {
			return fmt.Errorf("record_evaluation: failed to save evaluation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateAll(ctx, h.cache, eval.StudentID)
	return eval, nil
}
