package finance

import (
	"context"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// TuitionRepository - хранилище счетов за обучение.
type TuitionRepository interface {
	Create(ctx context.Context, t *Tuition) error

	// CreateBatch сохраняет все счета одной операцией.
	CreateBatch(ctx context.Context, ts []*Tuition) error

	// GetForUpdate возвращает счёт и блокирует его до конца транзакции.
	// Возвращает ErrTuitionNotFound, если счёта нет.
	GetForUpdate(ctx context.Context, id int64) (*Tuition, error)

	Update(ctx context.Context, t *Tuition) error

	// MarkOverdue переводит pending-счета со сроком раньше today в overdue
	// и возвращает их количество.
	MarkOverdue(ctx context.Context, today time.Time) (int, error)

	ListByStudent(ctx context.Context, studentID shared.UserID, page shared.Page) ([]*Tuition, error)
}

// PayrollRepository - хранилище зарплатных ведомостей.
type PayrollRepository interface {
	// CreateBatch сохраняет все ведомости одной операцией.
	CreateBatch(ctx context.Context, ps []*Payroll) error

	// GetForUpdate возвращает ведомость и блокирует её до конца транзакции.
	// Возвращает ErrPayrollNotFound, если ведомости нет.
	GetForUpdate(ctx context.Context, id int64) (*Payroll, error)

	Update(ctx context.Context, p *Payroll) error

	ListByTeacher(ctx context.Context, teacherID shared.UserID, page shared.Page) ([]*Payroll, error)
}
