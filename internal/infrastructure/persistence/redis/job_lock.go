package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a single-holder lock built on SET NX PX.
type JobLock struct {
	cache *Cache
}

// NewJobLock creates a JobLock.
func NewJobLock(cache *Cache) *JobLock {
	return &JobLock{cache: cache}
}

// Acquire takes the named lock for ttl. It returns shared.ErrLocked when
// another holder owns it. The returned release is safe to call once the
// lock has expired.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = TTLJobLock
	}
	key := LockKey(name)
	token := uuid.NewString()

	ok, err := l.cache.Client().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, shared.ErrLocked
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.cache.Client(), []string{key}, token).Err()
	}
	return release, nil
}
