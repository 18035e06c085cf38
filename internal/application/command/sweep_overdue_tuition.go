package command

import (
	"context"
	"fmt"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/pkg/timeutil"
)

// SweepOverdueTuitionHandler marks pending tuition past its due date as overdue.
type SweepOverdueTuitionHandler struct {
	uow   uow.UnitOfWork
	clock Clock
}

// NewSweepOverdueTuitionHandler creates a new SweepOverdueTuitionHandler.
func NewSweepOverdueTuitionHandler(u uow.UnitOfWork, clock Clock) *SweepOverdueTuitionHandler {
	return &SweepOverdueTuitionHandler{uow: u, clock: clock}
}

// Handle returns the number of rows moved to overdue.
func (h *SweepOverdueTuitionHandler) Handle(ctx context.Context) (int, error) {
	today := timeutil.Today(h.clock.now())

	var n int
	err := h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		var err error
		n, err = s.Tuitions.MarkOverdue(ctx, today)
		if err != nil {
			return fmt.Errorf("sweep_overdue_tuition: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
