package memory

import (
	"context"
	"sync"

	"github.com/schoolbook/schoolbook-core/internal/domain/evaluation"
	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// ScoreCache is a process-local score cache with the same generation check
// as the Redis one: a tally read before an invalidation is never stored
// after it. Entries do not expire.
type ScoreCache struct {
	mu          sync.Mutex
	tallies     map[shared.UserID]map[shared.ClassID]evaluation.Tally
	generations map[shared.UserID]int64
}

// NewScoreCache creates an empty ScoreCache.
func NewScoreCache() *ScoreCache {
	return &ScoreCache{
		tallies:     make(map[shared.UserID]map[shared.ClassID]evaluation.Tally),
		generations: make(map[shared.UserID]int64),
	}
}

// Tally returns the cached tally, the student's generation and whether the
// tally was found.
func (c *ScoreCache) Tally(_ context.Context, studentID shared.UserID, classID shared.ClassID) (evaluation.Tally, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tallies[studentID][classID]
	return t, c.generations[studentID], ok, nil
}

// StoreTally keeps t unless the student was invalidated after gen was read.
func (c *ScoreCache) StoreTally(_ context.Context, studentID shared.UserID, classID shared.ClassID, gen int64, t evaluation.Tally) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[studentID] != gen {
		return nil
	}
	byClass, ok := c.tallies[studentID]
	if !ok {
		byClass = make(map[shared.ClassID]evaluation.Tally)
		c.tallies[studentID] = byClass
	}
	byClass[classID] = t
	return nil
}

// InvalidateStudent drops the student's tallies and bumps the generation.
func (c *ScoreCache) InvalidateStudent(_ context.Context, studentID shared.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[studentID]++
	delete(c.tallies, studentID)
	return nil
}
