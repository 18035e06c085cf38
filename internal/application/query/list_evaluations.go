package query

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST EVALUATIONS QUERIES
// Выборки журнала с учётом роли. Вызов вне области видимости отклоняется
// с Unauthorized, а не фильтруется до пустого списка.
// ══════════════════════════════════════════════════════════════════════════════

// EvaluationDTO - запись журнала с именами для отображения.
type EvaluationDTO struct {
	ID int64 `json:"id"`

	StudentID   shared.UserID `json:"student_id"`
	StudentName string        `json:"student_name"`
	TeacherID   shared.UserID `json:"teacher_id"`
	TeacherName string        `json:"teacher_name"`

	ClassID shared.ClassID `json:"class_id"`

	// ClassLabel - "Класс (Предмет)".
	ClassLabel string `json:"class_label"`

	Type            evaluation.Type `json:"evaluation_type"`
	StudyPoint      int             `json:"study_point"`
	DisciplinePoint int             `json:"discipline_point"`
	Content         string          `json:"content"`
	Date            time.Time       `json:"date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ListEvaluationsHandler обрабатывает выборки журнала.
type ListEvaluationsHandler struct {
	evaluations evaluation.Repository
	directory   school.Directory
}

// NewListEvaluationsHandler создаёт обработчик.
func NewListEvaluationsHandler(evaluations evaluation.Repository, directory school.Directory) *ListEvaluationsHandler {
	return &ListEvaluationsHandler{evaluations: evaluations, directory: directory}
}

// ForStudent - записи одного ученика.
func (h *ListEvaluationsHandler) ForStudent(ctx context.Context, actor shared.Principal, studentID shared.UserID, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanAccessStudent(actor, studentID) {
		return nil, shared.Unauthorized("evaluation", "ForStudent", "caller may not read this student")
	}
	rows, err := h.evaluations.ListByStudent(ctx, studentID, page.Normalize())
	return h.present(ctx, rows, err)
}

// ForStudentInClass - записи ученика в одном классе.
func (h *ListEvaluationsHandler) ForStudentInClass(ctx context.Context, actor shared.Principal, studentID shared.UserID, classID shared.ClassID, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanAccessStudent(actor, studentID) {
		return nil, shared.Unauthorized("evaluation", "ForStudentInClass", "caller may not read this student")
	}
	rows, err := h.evaluations.ListByStudentInClass(ctx, studentID, classID, page.Normalize())
	return h.present(ctx, rows, err)
}

// ForParent - записи всех детей родителя.
func (h *ListEvaluationsHandler) ForParent(ctx context.Context, actor shared.Principal, parentID shared.UserID, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanAccessParent(actor, parentID) {
		return nil, shared.Unauthorized("evaluation", "ForParent", "caller may not read this parent")
	}
	children, err := h.directory.ChildrenOf(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load children: %w", err)
	}
	if len(children) == 0 {
		return []EvaluationDTO{}, nil
	}
	rows, err := h.evaluations.ListByStudents(ctx, children, page.Normalize())
	return h.present(ctx, rows, err)
}

// ForTeacher - записи, выставленные учителем. Только для персонала.
func (h *ListEvaluationsHandler) ForTeacher(ctx context.Context, actor shared.Principal, teacherID shared.UserID, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanViewStaffScope(actor) {
		return nil, shared.Unauthorized("evaluation", "ForTeacher", "only staff can list by teacher")
	}
	rows, err := h.evaluations.ListByTeacher(ctx, teacherID, page.Normalize())
	return h.present(ctx, rows, err)
}

// ForClass - записи класса. Только для персонала.
func (h *ListEvaluationsHandler) ForClass(ctx context.Context, actor shared.Principal, classID shared.ClassID, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanViewStaffScope(actor) {
		return nil, shared.Unauthorized("evaluation", "ForClass", "only staff can list by class")
	}
	rows, err := h.evaluations.ListByClass(ctx, classID, page.Normalize())
	return h.present(ctx, rows, err)
}

// All - весь журнал. Только для персонала.
func (h *ListEvaluationsHandler) All(ctx context.Context, actor shared.Principal, page shared.Page) ([]EvaluationDTO, error) {
	if !shared.CanViewStaffScope(actor) {
		return nil, shared.Unauthorized("evaluation", "All", "only staff can list all evaluations")
	}
	rows, err := h.evaluations.List(ctx, page.Normalize())
	return h.present(ctx, rows, err)
}

// present подставляет имена и метки классов.
func (h *ListEvaluationsHandler) present(ctx context.Context, rows []*evaluation.Evaluation, err error) ([]EvaluationDTO, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	if len(rows) == 0 {
		return []EvaluationDTO{}, nil
	}

	userIDs := make([]shared.UserID, 0, len(rows)*2)
	classIDs := make([]shared.ClassID, 0, len(rows))
	for _, e := range rows {
		userIDs = append(userIDs, e.StudentID, e.TeacherID)
		classIDs = append(classIDs, e.ClassID)
	}

	names, err := h.directory.UserNames(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load names: %w", err)
	}
	classes, err := h.directory.Classes(ctx, classIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load classes: %w", err)
	}

	out := make([]EvaluationDTO, len(rows))
	for i, e := range rows {
		dto := EvaluationDTO{
			ID:              e.ID,
			StudentID:       e.StudentID,
			StudentName:     names[e.StudentID],
			TeacherID:       e.TeacherID,
			TeacherName:     names[e.TeacherID],
			ClassID:         e.ClassID,
			Type:            e.Type,
			StudyPoint:      e.StudyPoint,
			DisciplinePoint: e.DisciplinePoint,
			Content:         e.Content,
			Date:            e.Date,
			CreatedAt:       e.CreatedAt,
		}
		if c, ok := classes[e.ClassID]; ok {
			dto.ClassLabel = c.Label()
		}
		out[i] = dto
	}
	return out, nil
}
