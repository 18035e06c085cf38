package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
	"github.com/schoolbook/schoolbook-core/pkg/circuitbreaker"
)

// storeScript writes a tally only while the student's generation still equals
// the one the reader saw before querying the ledger. The hash TTL is set when
// the hash is created and never extended, so a tally cannot outlive it.
//
// KEYS[1] tally hash, KEYS[2] generation counter.
// ARGV[1] expected generation, ARGV[2] field, ARGV[3] JSON, ARGV[4] TTL ms.
var storeScript = redis.NewScript(`
local gen = tonumber(redis.call("GET", KEYS[2]) or "0")
if gen ~= tonumber(ARGV[1]) then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[2], ARGV[3])
if redis.call("PTTL", KEYS[1]) == -1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[4])
end
return 1
`)

// ScoreCache stores evaluation tallies in one hash per student. Field "0"
// holds the all-classes tally, other fields are class ids. A per-student
// generation counter, bumped by every invalidation, rejects tallies computed
// before the last ledger write.
type ScoreCache struct {
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewScoreCache creates a ScoreCache. A non-positive ttl uses TTLScoreCache.
func NewScoreCache(cache *Cache, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = TTLScoreCache
	}
	return &ScoreCache{cache: cache, ttl: ttl}
}

// WithBreaker routes reads and writes through cb. While the circuit is open
// Tally fails fast with ErrCacheBypassed and StoreTally does nothing.
// Invalidation always goes to Redis.
func (s *ScoreCache) WithBreaker(cb *circuitbreaker.CircuitBreaker) *ScoreCache {
	s.breaker = cb
	return s
}

// ErrCacheBypassed is returned by Tally while the circuit is open.
var ErrCacheBypassed = errors.New("cache: bypassed while circuit is open")

func (s *ScoreCache) guard(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.breaker == nil {
		return fn(ctx)
	}
	err := s.breaker.Execute(ctx, fn)
	if circuitbreaker.IsRejected(err) {
		return ErrCacheBypassed
	}
	return err
}

// Tally returns a cached tally, the student's current generation and whether
// the tally was found. The generation must be passed back to StoreTally.
func (s *ScoreCache) Tally(ctx context.Context, studentID shared.UserID, classID shared.ClassID) (evaluation.Tally, int64, bool, error) {
	var (
		t     evaluation.Tally
		gen   int64
		found bool
	)
	err := s.guard(ctx, func(ctx context.Context) error {
		var (
			field *redis.StringCmd
			g     *redis.StringCmd
		)
		_, err := s.cache.Client().Pipelined(ctx, func(p redis.Pipeliner) error {
			field = p.HGet(ctx, ScoreKey(studentID.Int64()), classField(classID))
			g = p.Get(ctx, GenerationKey(studentID.Int64()))
			return nil
		})
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		gen, err = g.Int64()
		if errors.Is(err, redis.Nil) {
			gen, err = 0, nil
		}
		if err != nil {
			return err
		}

		data, err := field.Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return evaluation.Tally{}, 0, false, err
	}
	return t, gen, found, nil
}

// StoreTally caches a tally computed after Tally reported generation gen.
// A later invalidation makes it a silent no-op.
func (s *ScoreCache) StoreTally(ctx context.Context, studentID shared.UserID, classID shared.ClassID, gen int64, t evaluation.Tally) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	err = s.guard(ctx, func(ctx context.Context) error {
		keys := []string{ScoreKey(studentID.Int64()), GenerationKey(studentID.Int64())}
		return storeScript.Run(ctx, s.cache.Client(), keys,
			gen, classField(classID), data, s.ttl.Milliseconds()).Err()
	})
	if errors.Is(err, ErrCacheBypassed) {
		return nil
	}
	return err
}

// InvalidateStudent bumps the student's generation and drops every cached
// tally in one transaction.
func (s *ScoreCache) InvalidateStudent(ctx context.Context, studentID shared.UserID) error {
	_, err := s.cache.Client().TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, GenerationKey(studentID.Int64()))
		p.Del(ctx, ScoreKey(studentID.Int64()))
		return nil
	})
	return err
}

func classField(classID shared.ClassID) string {
	return strconv.FormatInt(classID.Int64(), 10)
}
