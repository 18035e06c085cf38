package finance

import (
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// Payroll - зарплатная ведомость учителя за месяц.
// Итог не хранится отдельно, а всегда выводится из составляющих.
type Payroll struct {
	ID              int64
	TeacherID       shared.UserID
	Month           int
	Year            int
	BaseSalaryTotal Money
	RewardBonus     Money
	SentAt          time.Time
	Status          Status
	RunID           *RunID
}

// Total = базовая часть + премия.
func (p *Payroll) Total() Money {
	return p.BaseSalaryTotal + p.RewardBonus
}

// ComputePayroll считает ведомость: число классов × ставка за класс + премия.
// Число классов - все классы, закреплённые за учителем на момент расчёта.
func ComputePayroll(teacherID shared.UserID, classesTaught int, perClass, bonus Money, now time.Time) *Payroll {
	return &Payroll{
		TeacherID:       teacherID,
		Month:           int(now.Month()),
		Year:            now.Year(),
		BaseSalaryTotal: Money(classesTaught) * perClass,
		RewardBonus:     bonus,
		SentAt:          now,
		Status:          StatusPending,
	}
}

// PayrollPatch - частичное обновление ведомости. Итога здесь нет.
type PayrollPatch struct {
	Month           *int
	BaseSalaryTotal *Money
	RewardBonus     *Money
	SentAt          *time.Time
	Status          *Status
}

// Apply применяет обновление. Оплаченная ведомость отклоняется с ErrPayrollSettled.
func (p *Payroll) Apply(patch PayrollPatch) error {
	if p.Status.IsSettled() {
		return shared.ErrPayrollSettled
	}
	if patch.Month != nil && (*patch.Month < 1 || *patch.Month > 12) {
		return shared.WrapError("payroll", "Update", shared.ErrValueOutOfRange,
			"month must be between 1 and 12", fmt.Errorf("month %d", *patch.Month))
	}
	if patch.BaseSalaryTotal != nil && *patch.BaseSalaryTotal < 0 {
		return shared.ErrInvalidAmount
	}
	if patch.RewardBonus != nil && *patch.RewardBonus < 0 {
		return shared.ErrInvalidAmount
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return shared.ErrInvalidStatus
		}
		if !canPayrollTransition(p.Status, *patch.Status) {
			return shared.WrapError("payroll", "Update", shared.ErrStateTransition,
				"invalid status transition", fmt.Errorf("%s -> %s", p.Status, *patch.Status))
		}
	}

	if patch.Month != nil {
		p.Month = *patch.Month
	}
	if patch.BaseSalaryTotal != nil {
		p.BaseSalaryTotal = *patch.BaseSalaryTotal
	}
	if patch.RewardBonus != nil {
		p.RewardBonus = *patch.RewardBonus
	}
	if patch.SentAt != nil {
		p.SentAt = *patch.SentAt
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	return nil
}

// canPayrollTransition: ведомость не бывает просроченной, её можно только
// выплатить.
func canPayrollTransition(from, to Status) bool {
	if from == to {
		return !from.IsSettled()
	}
	return from == StatusPending && to == StatusPaid
}

// Clone возвращает независимую копию.
func (p *Payroll) Clone() *Payroll {
	c := *p
	if p.RunID != nil {
		r := *p.RunID
		c.RunID = &r
	}
	return &c
}
