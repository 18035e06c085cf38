package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/pkg/circuitbreaker"
)

var errDown = errors.New("redis down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	var transitions []string
	cb := circuitbreaker.New("cache",
		circuitbreaker.WithFailureThreshold(2),
		circuitbreaker.WithSuccessThreshold(1),
		circuitbreaker.WithCooldown(10*time.Second),
		circuitbreaker.WithClock(func() time.Time { return now }),
		circuitbreaker.WithOnStateChange(func(_ string, from, to circuitbreaker.State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.True(t, circuitbreaker.IsRejected(err))
	assert.False(t, called)

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Execute(ctx, ok))
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
	assert.Equal(t, 3, cb.Counts().Requests)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	cb := circuitbreaker.New("cache",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithCooldown(time.Second),
		circuitbreaker.WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	now = now.Add(2 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, fail), errDown)
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
	require.ErrorIs(t, cb.Execute(ctx, ok), circuitbreaker.ErrCircuitOpen)
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	cb := circuitbreaker.New("cache",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithIsFailure(func(err error) bool { return !errors.Is(err, context.Canceled) }),
	)

	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())

	cb.Reset()
	assert.Zero(t, cb.Counts().Requests)
}
