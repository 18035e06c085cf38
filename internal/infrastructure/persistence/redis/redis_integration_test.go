//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/internal/infrastructure/persistence/redis"
)

var cache *redis.Cache

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		cancel()
		panic(err)
	}

	code := func() int {
		defer func() { _ = container.Terminate(context.Background()) }()

		host, err := container.Host(ctx)
		if err != nil {
			panic(err)
		}
		port, err := container.MappedPort(ctx, "6379")
		if err != nil {
			panic(err)
		}

		cache = redis.NewCacheFromClient(goredis.NewClient(&goredis.Options{
			Addr: fmt.Sprintf("%s:%s", host, port.Port()),
		}))
		defer cache.Close()
		return m.Run()
	}()

	cancel()
	os.Exit(code)
}

func TestScoreCache(t *testing.T) {
	ctx := context.Background()
	sc := redis.NewScoreCache(cache, time.Minute)
	student := shared.UserID(20)

	_, gen, hit, err := sc.Tally(ctx, student, 0)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, gen)

	want := evaluation.Tally{Rows: 2, StudyTotal: 3, DisciplineTotal: -5, StudyPlus: 1, DisciplineMinus: 1}
	require.NoError(t, sc.StoreTally(ctx, student, 0, gen, want))
	require.NoError(t, sc.StoreTally(ctx, student, 100, gen, evaluation.Tally{Rows: 1}))

	got, _, hit, err := sc.Tally(ctx, student, 0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	ttl, err := cache.Client().TTL(ctx, redis.ScoreKey(20)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sc.InvalidateStudent(ctx, student))
	for _, class := range []shared.ClassID{0, 100} {
		_, gen, hit, err = sc.Tally(ctx, student, class)
		require.NoError(t, err)
		assert.False(t, hit, "class %d", class)
		assert.Equal(t, int64(1), gen)
	}
}

func TestScoreCache_StaleStoreIsDropped(t *testing.T) {
	ctx := context.Background()
	sc := redis.NewScoreCache(cache, time.Minute)
	student := shared.UserID(21)

	_, seen, _, err := sc.Tally(ctx, student, 0)
	require.NoError(t, err)

	// A ledger write commits and invalidates while the reader aggregates.
	require.NoError(t, sc.InvalidateStudent(ctx, student))

	require.NoError(t, sc.StoreTally(ctx, student, 0, seen, evaluation.Tally{Rows: 1, StudyTotal: 5}))
	_, _, hit, err := sc.Tally(ctx, student, 0)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestScoreCache_StoreDoesNotExtendTTL(t *testing.T) {
	ctx := context.Background()
	sc := redis.NewScoreCache(cache, time.Minute)
	student := shared.UserID(22)

	require.NoError(t, sc.StoreTally(ctx, student, 0, 0, evaluation.Tally{Rows: 1}))
	require.NoError(t, cache.Client().PExpire(ctx, redis.ScoreKey(22), 5*time.Second).Err())

	require.NoError(t, sc.StoreTally(ctx, student, 100, 0, evaluation.Tally{Rows: 2}))
	ttl, err := cache.Client().PTTL(ctx, redis.ScoreKey(22)).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 5*time.Second)
}

func TestJobLock(t *testing.T) {
	ctx := context.Background()
	lock := redis.NewJobLock(cache)

	release, err := lock.Acquire(ctx, "run_payroll", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "run_payroll", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLocked)

	other, err := lock.Acquire(ctx, "generate_tuition", time.Minute)
	require.NoError(t, err)
	other()

	release()
	again, err := lock.Acquire(ctx, "run_payroll", time.Minute)
	require.NoError(t, err)
	again()
}

func TestJobLockReleaseAfterTakeover(t *testing.T) {
	ctx := context.Background()
	lock := redis.NewJobLock(cache)

	stale, err := lock.Acquire(ctx, "sweep", 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	fresh, err := lock.Acquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	stale()
	exists, err := cache.Client().Exists(ctx, redis.LockKey("sweep")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "stale release must not drop the new holder's lock")
	fresh()
}
