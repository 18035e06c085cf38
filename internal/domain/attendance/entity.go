// Package attendance описывает посещаемость занятий и переход
// "пропуск → опоздание", от которого зависят дисциплинарные записи.
package attendance

import (
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - отметка о посещении.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record - отметка одного ученика на одном занятии в конкретную дату.
// Уникальна по (ученик, расписание, класс, дата).
type Record struct {
	ID          int64
	StudentID   shared.UserID
	ScheduleID  shared.ScheduleID
	ClassID     shared.ClassID
	Date        time.Time
	Status      Status
	CheckinTime *Clock
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UniqueKey - ключ уникальности записи.
type UniqueKey struct {
	StudentID  shared.UserID
	ScheduleID shared.ScheduleID
	ClassID    shared.ClassID
	Date       string
}

// Key возвращает ключ уникальности.
func (r *Record) Key() UniqueKey {
	return UniqueKey{
		StudentID:  r.StudentID,
		ScheduleID: r.ScheduleID,
		ClassID:    r.ClassID,
		Date:       r.Date.Format(timeutil.LayoutDate),
	}
}

// IsAbsent сообщает, порождает ли запись штраф за пропуск.
func (r *Record) IsAbsent() bool {
	return r.Status == StatusAbsent
}

// MarkLate исправляет пропуск на опоздание. Разрешён только переход
// absent → late; для остальных статусов возвращает ErrNotAbsent.
func (r *Record) MarkLate(checkin Clock, now time.Time) error {
	if r.Status != StatusAbsent {
		return shared.ErrNotAbsent
	}
	r.Status = StatusLate
	r.CheckinTime = &checkin
	r.UpdatedAt = now
	return nil
}

// Clone возвращает независимую копию.
func (r *Record) Clone() *Record {
	c := *r
	if r.CheckinTime != nil {
		ct := *r.CheckinTime
		c.CheckinTime = &ct
	}
	return &c
}
