package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/pkg/retry"
)

var errTransient = errors.New("serialization failure")

func fast(opts ...retry.Option) []retry.Option {
	return append([]retry.Option{retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(2 * time.Millisecond)}, opts...)
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return retry.Retryable(errTransient)
		}
		return nil
	}, fast(retry.WithMaxAttempts(5))...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return retry.Permanent(errTransient)
	}, fast(retry.WithRetryIf(func(error) bool { return true }))...)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	}, fast(
		retry.WithMaxAttempts(3),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, errTransient) }),
		retry.WithOnRetry(func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }),
	)...)

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retry.Do(ctx, func(context.Context) error { calls++; return nil })
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	n, err := retry.DoWithData(context.Background(), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, retry.Retryable(errTransient)
		}
		return 42, nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestTransactionRetrier(t *testing.T) {
	permanent := errors.New("constraint")
	calls := 0
	err := retry.TransactionRetrier(func(err error) bool { return errors.Is(err, errTransient) }).
		Do(context.Background(), func(context.Context) error {
			calls++
			return permanent
		})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestStartup_PermanentConfigErrorIsNotRetried(t *testing.T) {
	errBadURL := errors.New("parse database URL")
	var retried int
	opts := append(retry.Startup(func(int, error, time.Duration) { retried++ }),
		retry.WithInitialDelay(time.Millisecond), retry.WithMaxDelay(2*time.Millisecond))

	calls := 0
	_, err := retry.DoWithData(context.Background(), func(context.Context) (*int, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("connection refused")
		}
		return nil, retry.Permanent(errBadURL)
	}, opts...)

	require.ErrorIs(t, err, errBadURL)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retried)
}

func TestBackoffGrowsByMultiplier(t *testing.T) {
	var delays []time.Duration
	_ = retry.Do(context.Background(), func(context.Context) error { return errTransient },
		retry.WithMaxAttempts(4),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMultiplier(3),
		retry.WithMaxDelay(time.Second),
		retry.WithJitter(0),
		retry.WithRetryIf(func(error) bool { return true }),
		retry.WithOnRetry(func(_ int, _ error, d time.Duration) { delays = append(delays, d) }),
	)

	assert.Equal(t, []time.Duration{time.Millisecond, 3 * time.Millisecond, 9 * time.Millisecond}, delays)
}
