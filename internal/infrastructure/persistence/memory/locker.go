package memory

import (
	"context"
	"sync"
	"time"

	"github.com/schoolbook/schoolbook-core/internal/domain/shared"
)

// Locker is a process-local job lock with expiry. It stands in for the
// Redis lock when the worker runs without Redis.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lease
	next  uint64
	clock func() time.Time
}

type lease struct {
	token   uint64
	expires time.Time
}

// NewLocker creates a Locker. A nil clock uses time.Now.
func NewLocker(clock func() time.Time) *Locker {
	if clock == nil {
		clock = time.Now
	}
	return &Locker{held: make(map[string]lease), clock: clock}
}

// Acquire takes the named lock for ttl or returns shared.ErrLocked.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[name]; ok && now.Before(cur.expires) {
		return nil, shared.ErrLocked
	}

	l.next++
	token := l.next
	l.held[name] = lease{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[name]; ok && cur.token == token {
			delete(l.held, name)
		}
	}, nil
}
