package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// NewStores binds every repository to q, which is either the pool or a transaction.
func NewStores(q Querier) uow.Stores {
	return uow.Stores{
		Evaluations:   NewEvaluationRepository(q),
		Attendance:    NewAttendanceRepository(q),
		Notifications: NewNotificationRepository(q),
		Tuitions:      NewTuitionRepository(q),
		Payrolls:      NewPayrollRepository(q),
		Directory:     NewDirectoryRepository(q),
	}
}

// UnitOfWork runs application work inside one PostgreSQL transaction.
type UnitOfWork struct {
	conn *Connection
	opts pgx.TxOptions
}

// NewUnitOfWork creates a UnitOfWork with read-committed transactions.
func NewUnitOfWork(conn *Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite}}
}

// Do implements uow.UnitOfWork. Panics roll back and are re-raised.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s uow.Stores) error) error {
	err := u.conn.WithTx(ctx, u.opts, func(tx pgx.Tx) error {
		return fn(ctx, NewStores(tx))
	})
	if IsTransient(err) && !shared.IsRetryable(err) {
		return shared.WrapError("postgres", "UnitOfWork", shared.ErrServiceUnavailable,
			"transaction aborted by a concurrent update", err)
	}
	return err
}

var _ uow.UnitOfWork = (*UnitOfWork)(nil)
