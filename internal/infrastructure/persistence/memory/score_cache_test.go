package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/memory"
)

func TestScoreCache(t *testing.T) {
	ctx := context.Background()
	c := memory.NewScoreCache()
	student := shared.UserID(20)

	_, gen, hit, err := c.Tally(ctx, student, 0)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.StoreTally(ctx, student, 0, gen, evaluation.Tally{Rows: 1, StudyTotal: -5}))
	got, _, hit, err := c.Tally(ctx, student, 0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, -5, got.StudyTotal)

	t.Run("store after invalidation is dropped", func(t *testing.T) {
		_, seen, _, err := c.Tally(ctx, student, 100)
		require.NoError(t, err)
		require.NoError(t, c.InvalidateStudent(ctx, student))

		require.NoError(t, c.StoreTally(ctx, student, 100, seen, evaluation.Tally{Rows: 3}))
		_, gen, hit, err := c.Tally(ctx, student, 100)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, seen+1, gen)

		_, _, hit, err = c.Tally(ctx, student, 0)
		require.NoError(t, err)
		assert.False(t, hit, "invalidation drops every class")
	})

	t.Run("other students are untouched", func(t *testing.T) {
		other := shared.UserID(21)
		require.NoError(t, c.StoreTally(ctx, other, 0, 0, evaluation.Tally{Rows: 1}))
		require.NoError(t, c.InvalidateStudent(ctx, student))

		_, _, hit, err := c.Tally(ctx, other, 0)
		require.NoError(t, err)
		assert.True(t, hit)
	})
}
