// Package evaluation содержит журнал оценок: знаковые дельты учебных
// и дисциплинарных баллов, из которых выводится итоговый счёт ученика.
package evaluation

import (
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type - категория записи журнала.
type Type string

const (
	// TypeInitial - стартовая запись.
	TypeInitial Type = "initial"

	// TypeStudy - учебная оценка.
	TypeStudy Type = "study"

	// TypeDiscipline - дисциплинарная оценка (в том числе от посещаемости).
	TypeDiscipline Type = "discipline"
)

// IsValid проверяет, что тип известен.
func (t Type) IsValid() bool {
	switch t {
	case TypeInitial, TypeStudy, TypeDiscipline:
		return true
	default:
		return false
	}
}

// ParseType разбирает строковое представление типа.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", shared.WrapError("evaluation", "ParseType", shared.ErrInvalidInput,
			"invalid evaluation type", fmt.Errorf("%q", s))
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVALUATION ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Evaluation - одна строка журнала. Баллы хранятся как дельты относительно
// базового значения, а не как абсолютные оценки.
type Evaluation struct {
	ID              int64
	StudentID       shared.UserID
	TeacherID       shared.UserID
	ClassID         shared.ClassID
	Type            Type
	StudyPoint      int
	DisciplinePoint int
	Content         string

	// Date - дата события (урока), без времени.
	Date time.Time

	// AttendanceID ссылается на отметку посещаемости, породившую штраф.
	// У оценок, поставленных учителем вручную, он пуст.
	AttendanceID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет инварианты записи.
func (e *Evaluation) Validate() error {
	verr := shared.NewValidationError("evaluation.Validate")
	if !e.StudentID.IsValid() {
		verr.Add("student_id", e.StudentID.String(), "must be positive")
	}
	if !e.TeacherID.IsValid() {
		verr.Add("teacher_id", e.TeacherID.String(), "must be positive")
	}
	if !e.ClassID.IsValid() {
		verr.Add("class_id", e.ClassID.String(), "must be positive")
	}
	if !e.Type.IsValid() {
		verr.Add("type", string(e.Type), "unknown evaluation type")
	}
	if e.Date.IsZero() {
		verr.Add("date", "", "is required")
	}
	return verr.OrNil()
}

// Apply применяет частичное обновление. Идентифицирующие поля
// (ученик, учитель, класс) не меняются.
func (e *Evaluation) Apply(p Patch, now time.Time) error {
	if p.Type != nil {
		if !p.Type.IsValid() {
			return shared.ErrInvalidEvalType
		}
		e.Type = *p.Type
	}
	if p.StudyPoint != nil {
		e.StudyPoint = *p.StudyPoint
	}
	if p.DisciplinePoint != nil {
		e.DisciplinePoint = *p.DisciplinePoint
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.Date != nil {
		e.Date = DateOnly(*p.Date)
	}
	e.UpdatedAt = now
	return nil
}

// Clone возвращает независимую копию.
func (e *Evaluation) Clone() *Evaluation {
	c := *e
	if e.AttendanceID != nil {
		id := *e.AttendanceID
		c.AttendanceID = &id
	}
	return &c
}

// Patch - частичное обновление записи. nil означает "не менять".
type Patch struct {
	Type            *Type
	StudyPoint      *int
	DisciplinePoint *int
	Content         *string
	Date            *time.Time
}

// IsEmpty сообщает, что обновлять нечего.
func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.StudyPoint == nil && p.DisciplinePoint == nil &&
		p.Content == nil && p.Date == nil
}

// DateOnly отбрасывает время, сохраняя календарную дату в UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return timeutil.Date(y, int(m), d)
}
