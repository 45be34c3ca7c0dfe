package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Lock serializes operations and enforces a minimum wait between them.
type Lock interface {
	Lock(ctx context.Context) func()
}

type lock struct {
	lck  sync.Mutex
	wait time.Duration
	last time.Time
}

// New creates a lock with the given minimum wait between operations.
func New(wait time.Duration) Lock {
	return &lock{
		wait: wait,
	}
}

// Lock blocks until the wait since the previous operation has elapsed and
// returns the function that releases the lock.
func (l *lock) Lock(ctx context.Context) func() {
	l.lck.Lock()
	if elapsed := time.Since(l.last); elapsed < l.wait {
		t := time.NewTimer(l.wait - elapsed)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	return func() {
		l.last = time.Now()
		l.lck.Unlock()
	}
}
