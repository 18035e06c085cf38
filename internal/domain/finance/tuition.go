package finance

import (
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// Tuition - счёт за обучение одного ученика за период.
type Tuition struct {
	ID          int64
	StudentID   shared.UserID
	Amount      Money
	Term        int
	DueDate     time.Time
	Status      Status
	PaymentDate *time.Time

	// RunID заполнен для счетов, созданных пакетным запуском.
	RunID *RunID

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTuition создаёт счёт в статусе pending.
func NewTuition(studentID shared.UserID, amount Money, term int, dueDate, now time.Time) (*Tuition, error) {
	if !studentID.IsValid() {
		return nil, shared.ErrStudentNotFound
	}
	if amount <= 0 {
		return nil, shared.ErrInvalidAmount
	}
	return &Tuition{
		StudentID: studentID,
		Amount:    amount,
		Term:      term,
		DueDate:   dateOnly(dueDate),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TuitionPatch - частичное обновление счёта.
type TuitionPatch struct {
	Amount  *Money
	Term    *int
	DueDate *time.Time
	Status  *Status
}

// Apply применяет обновление. Оплаченный счёт отклоняется с ErrTuitionSettled,
// а переход в paid проставляет дату оплаты.
func (t *Tuition) Apply(p TuitionPatch, now time.Time) error {
	if t.Status.IsSettled() {
		return shared.ErrTuitionSettled
	}
	if p.Amount != nil && *p.Amount <= 0 {
		return shared.ErrInvalidAmount
	}
	if p.Status != nil {
		if !p.Status.IsValid() {
			return shared.ErrInvalidStatus
		}
		if !t.Status.CanTransitionTo(*p.Status) {
			return shared.WrapError("tuition", "Update", shared.ErrStateTransition,
				"invalid status transition", fmt.Errorf("%s -> %s", t.Status, *p.Status))
		}
	}

	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Term != nil {
		t.Term = *p.Term
	}
	if p.DueDate != nil {
		t.DueDate = dateOnly(*p.DueDate)
	}
	if p.Status != nil {
		if *p.Status == StatusPaid && t.Status != StatusPaid {
			paid := now
			t.PaymentDate = &paid
		}
		t.Status = *p.Status
	}
	t.UpdatedAt = now
	return nil
}

// MarkOverdue переводит неоплаченный счёт с истёкшим сроком в overdue.
func (t *Tuition) MarkOverdue(today time.Time) bool {
	if t.Status != StatusPending || !t.DueDate.Before(dateOnly(today)) {
		return false
	}
	t.Status = StatusOverdue
	t.UpdatedAt = today
	return true
}

// Clone возвращает независимую копию.
func (t *Tuition) Clone() *Tuition {
	c := *t
	if t.PaymentDate != nil {
		pd := *t.PaymentDate
		c.PaymentDate = &pd
	}
	if t.RunID != nil {
		r := *t.RunID
		c.RunID = &r
	}
	return &c
}
