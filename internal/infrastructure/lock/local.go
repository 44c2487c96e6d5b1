// Package lock implements lock.Locker for a single process and for a
// fleet of servers sharing Redis.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pharmaflow/internal/core/apperror"
	corelock "pharmaflow/internal/core/lock"
)

// DefaultWait bounds how long Acquire waits for a busy key.
const DefaultWait = 5 * time.Second

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Idle keys are dropped.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewLocal creates a Local locker; wait <= 0 selects DefaultWait.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &Local{slots: make(map[string]*slot), wait: wait}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Acquire implements lock.Locker.
func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	s := l.ref(key)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key, s)
		return nil, busy(key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.unref(key, s)
		})
	}, nil
}

func busy(key string) error {
	return apperror.NewConflict(fmt.Sprintf("record %s is being modified, retry later", key)).
		WithDetail("lock", key)
}

var _ corelock.Locker = (*Local)(nil)
