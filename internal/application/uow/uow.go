// Package uow defines the transactional boundary shared by application commands.
package uow

import (
	"context"

	"github.com/schoolbook/schoolbook-core/internal/domain/attendance"
	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/school"
)

// Stores are the repositories bound to one transaction.
type Stores struct {
	Evaluations   evaluation.Repository
	Attendance    attendance.Repository
	Notifications notification.Repository
	Tuitions      finance.TuitionRepository
	Payrolls      finance.PayrollRepository
	Directory     school.Directory
}

// UnitOfWork runs fn inside one transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// Func adapts a function to UnitOfWork.
type Func func(ctx context.Context, fn func(ctx context.Context, s Stores) error) error

// Do implements UnitOfWork.
func (f Func) Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	return f(ctx, fn)
}
