package evaluation

import (
	"context"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище журнала оценок.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет запись и заполняет ID и временные метки.
	Create(ctx context.Context, e *Evaluation) error

	// Update перезаписывает изменяемые поля.
	// Возвращает ErrEvaluationNotFound, если записи нет.
	Update(ctx context.Context, e *Evaluation) error

	// Delete удаляет запись.
	// Возвращает ErrEvaluationNotFound, если записи нет.
	Delete(ctx context.Context, id int64) error

	// GetByID возвращает запись по ID.
	// Возвращает ErrEvaluationNotFound, если записи нет.
	GetByID(ctx context.Context, id int64) (*Evaluation, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Listings (по убыванию даты события)
	// ─────────────────────────────────────────────────────────────────────────

	ListByStudent(ctx context.Context, studentID shared.UserID, page shared.Page) ([]*Evaluation, error)
	ListByStudents(ctx context.Context, studentIDs []shared.UserID, page shared.Page) ([]*Evaluation, error)
	ListByTeacher(ctx context.Context, teacherID shared.UserID, page shared.Page) ([]*Evaluation, error)
	ListByClass(ctx context.Context, classID shared.ClassID, page shared.Page) ([]*Evaluation, error)
	ListByStudentInClass(ctx context.Context, studentID shared.UserID, classID shared.ClassID, page shared.Page) ([]*Evaluation, error)
	List(ctx context.Context, page shared.Page) ([]*Evaluation, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Upsert support
	// ─────────────────────────────────────────────────────────────────────────

	// FindByAttendance возвращает штраф, порождённый отметкой посещаемости,
	// и блокирует его до конца транзакции.
	// Возвращает ErrEvaluationNotFound, если штрафа нет.
	FindByAttendance(ctx context.Context, attendanceID int64) (*Evaluation, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregation
	// ─────────────────────────────────────────────────────────────────────────

	// TallyByStudent агрегирует все записи ученика.
	TallyByStudent(ctx context.Context, studentID shared.UserID) (Tally, error)

	// TallyByStudentInClass агрегирует записи ученика в одном классе.
	TallyByStudentInClass(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (Tally, error)
}
