// Package finance описывает счета за обучение и зарплатные ведомости.
// Суммы хранятся в целых донгах (VND), дробной части нет.
package finance

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// Money - сумма в VND.
type Money int64

// String форматирует сумму с разделителем тысяч.
func (m Money) String() string {
	return notification.GroupThousands(int64(m))
}

// Int64 возвращает значение.
func (m Money) Int64() int64 {
	return int64(m)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус платежа.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// IsValid проверяет, что статус известен.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

// IsSettled сообщает, что запись оплачена и больше не меняется.
func (s Status) IsSettled() bool {
	return s == StatusPaid
}

// CanTransitionTo проверяет переход статуса счёта за обучение. Оплаченный
// счёт не меняется, просроченный может быть только оплачен.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return !s.IsSettled()
	}
	switch s {
	case StatusPending:
		return next == StatusPaid || next == StatusOverdue
	case StatusOverdue:
		return next == StatusPaid
	default:
		return false
	}
}

// RunID идентифицирует один запуск пакетного расчёта.
type RunID = uuid.UUID

// NewRunID создаёт идентификатор запуска.
func NewRunID() RunID {
	return uuid.New()
}

// dateOnly отбрасывает время.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return timeutil.Date(y, int(m), d)
}
