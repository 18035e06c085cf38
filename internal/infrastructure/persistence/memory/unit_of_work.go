package memory

import (
	"context"
	"fmt"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
)

// Stores returns repositories over db.
func (db *DB) Stores() uow.Stores {
	return uow.Stores{
		Evaluations:   NewEvaluationRepository(db),
		Attendance:    NewAttendanceRepository(db),
		Notifications: NewNotificationRepository(db),
		Tuitions:      NewTuitionRepository(db),
		Payrolls:      NewPayrollRepository(db),
		Directory:     NewDirectory(db),
	}
}

type unitOfWork struct {
	db *DB
}

// NewUnitOfWork returns a unit of work that serializes transactions and
// restores the ledger when fn fails. Writes made outside Do are not covered.
func NewUnitOfWork(db *DB) uow.UnitOfWork {
	return &unitOfWork{db: db}
}

// Do implements uow.UnitOfWork.
func (u *unitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s uow.Stores) error) (err error) {
	u.db.tx.Lock()
	defer u.db.tx.Unlock()

	u.db.mu.RLock()
	saved := u.db.ledger.snapshot()
	u.db.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			u.restore(saved)
			panic(p)
		}
		if err != nil {
			u.restore(saved)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	return fn(ctx, u.db.Stores())
}

func (u *unitOfWork) restore(saved ledger) {
	u.db.mu.Lock()
	u.db.ledger = saved
	u.db.mu.Unlock()
}
