package command

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/logger"
	"github.com/schoolbook/schoolbook-core/pkg/retry"
)

// ScoreInvalidator drops cached score summaries after the ledger changes.
type ScoreInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID shared.UserID) error
}

// Locker prevents two instances of a batch job from running at once.
// Acquire returns shared.ErrLocked when the lock is held elsewhere.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

// BackgroundRunner executes work detached from the triggering request.
// Failures are reported by the runner, not returned to the caller.
type BackgroundRunner interface {
	Go(name string, fn func(ctx context.Context) error)
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c()
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateStudent(context.Context, shared.UserID) error { return nil }

// invalidationRetrier retries every cache failure a few times in quick
// succession. The ledger write is already committed at this point.
var invalidationRetrier = retry.New(
	retry.WithMaxAttempts(3),
	retry.WithInitialDelay(20*time.Millisecond),
	retry.WithMultiplier(4),
	retry.WithMaxDelay(200*time.Millisecond),
	retry.WithRetryIf(func(error) bool { return true }),
)

// invalidateAll drops cached summaries after a committed write. A failure
// does not fail the command: it is logged and the entry lives until its TTL.
func invalidateAll(ctx context.Context, inv ScoreInvalidator, ids ...shared.UserID) {
	ctx = context.WithoutCancel(ctx)
	seen := make(map[shared.UserID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		err := invalidationRetrier.Do(ctx, func(ctx context.Context) error {
			return inv.InvalidateStudent(ctx, id)
		})
		if err != nil {
			logger.FromContext(ctx).Warn("score cache invalidation failed",
				logger.StudentID(id.Int64()), zap.Error(err))
		}
	}
}
