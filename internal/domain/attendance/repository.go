package attendance

import (
	"context"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// Repository - хранилище посещаемости.
type Repository interface {
	// CreateBatch сохраняет все записи или ни одной.
	// Нарушение уникальности возвращает ErrAttendanceDuplicate.
	CreateBatch(ctx context.Context, records []*Record) error

	// FindForCorrection находит запись и блокирует её до конца транзакции.
	// Возвращает ErrAttendanceNotFound, если записи нет.
	FindForCorrection(ctx context.Context, studentID shared.UserID, scheduleID shared.ScheduleID, date time.Time) (*Record, error)

	// Update сохраняет статус и время отметки.
	Update(ctx context.Context, r *Record) error

	// ListBySchedule возвращает отметки занятия за дату.
	ListBySchedule(ctx context.Context, scheduleID shared.ScheduleID, date time.Time) ([]*Record, error)
}
