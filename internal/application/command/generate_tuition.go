package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/application/uow"
	"github.com/schoolbook/schoolbook-core/internal/domain/finance"
	"github.com/schoolbook/schoolbook-core/internal/domain/notification"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GENERATE TUITION COMMAND
// Bills every student the sum of their active enrollment fees and notifies the
// registered parent. The trigger returns at once; the run happens in the
// background as a single transaction.
// ══════════════════════════════════════════════════════════════════════════════

// GenerateTuitionJobName names the background run and its lock.
const GenerateTuitionJobName = "generate_tuition"

// GenerateTuitionCommand contains the billing period.
type GenerateTuitionCommand struct {
	Actor shared.Principal `json:"-"`

	Term    int       `json:"term" validate:"gte=1"`
	DueDate time.Time `json:"due_date" validate:"required"`
}

// Validate validates the command.
func (c GenerateTuitionCommand) Validate() error {
	return validateStruct(GenerateTuitionJobName, c)
}

// GenerateTuitionResult summarizes one run.
type GenerateTuitionResult struct {
	RunID    finance.RunID
	Created  int
	Notified int
	Skipped  int
}

// GenerateTuitionHandler handles the GenerateTuitionCommand.
type GenerateTuitionHandler struct {
	uow     uow.UnitOfWork
	runner  BackgroundRunner
	locker  Locker
	clock   Clock
	lockTTL time.Duration
}

// GenerateTuitionHandlerConfig contains configuration for the handler.
type GenerateTuitionHandlerConfig struct {
	// LockTTL bounds how long a crashed run keeps the lock.
	LockTTL time.Duration
}

// DefaultGenerateTuitionHandlerConfig returns default configuration.
func DefaultGenerateTuitionHandlerConfig() GenerateTuitionHandlerConfig {
	return GenerateTuitionHandlerConfig{LockTTL: 10 * time.Minute}
}

// NewGenerateTuitionHandler creates a new GenerateTuitionHandler.
// A nil locker disables the concurrent-run guard.
func NewGenerateTuitionHandler(
	u uow.UnitOfWork,
	runner BackgroundRunner,
	locker Locker,
	clock Clock,
	config GenerateTuitionHandlerConfig,
) *GenerateTuitionHandler {
	if config.LockTTL == 0 {
		config = DefaultGenerateTuitionHandlerConfig()
	}
	return &GenerateTuitionHandler{
		uow:     u,
		runner:  runner,
		locker:  locker,
		clock:   clock,
		lockTTL: config.LockTTL,
	}
}

// Handle validates the request and dispatches the run. The returned run id
// tags every tuition row the run creates.
func (h *GenerateTuitionHandler) Handle(ctx context.Context, cmd GenerateTuitionCommand) (finance.RunID, error) {
	if err := cmd.Validate(); err != nil {
		return finance.RunID{}, err
	}
	if !shared.CanManage(cmd.Actor) {
		return finance.RunID{}, shared.Unauthorized("tuition", "Generate", "only managers can generate tuition")
	}

	runID := finance.NewRunID()
	h.runner.Go(GenerateTuitionJobName, func(ctx context.Context) error {
		_, err := h.Run(ctx, cmd, runID)
		return err
	})
	return runID, nil
}

// Run executes the generation synchronously.
func (h *GenerateTuitionHandler) Run(ctx context.Context, cmd GenerateTuitionCommand, runID finance.RunID) (*GenerateTuitionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	release, err := acquire(ctx, h.locker, GenerateTuitionJobName, h.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	now := h.clock.now()
	result := &GenerateTuitionResult{RunID: runID}

	err = h.uow.Do(ctx, func(ctx context.Context, s uow.Stores) error {
		dues, err := s.Directory.TuitionDue(ctx)
		if err != nil {
			return fmt.Errorf("%s: failed to load enrollments: %w", GenerateTuitionJobName, err)
		}

		tuitions := make([]*finance.Tuition, 0, len(dues))
		parents := make([]*shared.UserID, 0, len(dues))
		names := make([]string, 0, len(dues))
		for _, due := range dues {
			if due.Amount <= 0 {
				result.Skipped++
				continue
			}
			t, err := finance.NewTuition(due.StudentID, due.Amount, cmd.Term, cmd.DueDate, now)
			if err != nil {
				return fmt.Errorf("%s: student %d: %w", GenerateTuitionJobName, due.StudentID, err)
			}
			id := runID
			t.RunID = &id
			tuitions = append(tuitions, t)
			parents = append(parents, due.ParentID)
			names = append(names, due.StudentName)
		}
		if len(tuitions) == 0 {
			return nil
		}

		if err := s.Tuitions.CreateBatch(ctx, tuitions); err != nil {
			return fmt.Errorf("%s: failed to save tuition: %w", GenerateTuitionJobName, err)
		}

		notes := make([]*notification.Notification, 0, len(tuitions))
		for i, t := range tuitions {
			if parents[i] == nil {
				continue
			}
			notes = append(notes, tuitionNotice(*parents[i], names[i], t, now))
		}
		if len(notes) > 0 {
			if err := s.Notifications.CreateBatch(ctx, notes); err != nil {
				return fmt.Errorf("%s: failed to save notifications: %w", GenerateTuitionJobName, err)
			}
		}

		result.Created = len(tuitions)
		result.Notified = len(notes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func tuitionNotice(parentID shared.UserID, studentName string, t *finance.Tuition, now time.Time) *notification.Notification {
	return &notification.Notification{
		ReceiverID: parentID,
		Content:    notification.TuitionDue(studentName, t.Amount.Int64(), t.DueDate),
		Type:       notification.TypeTuition,
		SentAt:     now,
		Source:     &notification.Source{Kind: notification.SourceTuition, ID: t.ID},
	}
}

// acquire takes the named lock, or does nothing when locker is nil.
func acquire(ctx context.Context, locker Locker, name string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	release, err := locker.Acquire(ctx, name, ttl)
	if err != nil {
		if errors.Is(err, shared.ErrLocked) {
			return nil, shared.WrapError(name, "Run", shared.ErrConflict, "another run is in progress", err)
		}
		return nil, fmt.Errorf("%s: failed to acquire lock: %w", name, err)
	}
	return release, nil
}
