package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/memory"
)

func TestLocker(t *testing.T) {
	now := time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC)
	l := memory.NewLocker(func() time.Time { return now })
	ctx := context.Background()

	release, err := l.Acquire(ctx, "run_payroll", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "run_payroll", time.Minute)
	require.ErrorIs(t, err, shared.ErrLocked)

	_, err = l.Acquire(ctx, "generate_tuition", time.Minute)
	require.NoError(t, err)

	release()
	release2, err := l.Acquire(ctx, "run_payroll", time.Minute)
	require.NoError(t, err)

	// An expired lease can be taken over, and the stale release is a no-op.
	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "run_payroll", time.Minute)
	require.NoError(t, err)
	release2()
	_, err = l.Acquire(ctx, "run_payroll", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLocked)
}
