package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agri-advance/internal/domain/uow"
)

type slot struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Waiters on the same key are served in arrival order;
// different keys never block each other.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// NewLocal returns a Local locker. wait bounds how long Lock blocks; zero waits until ctx is done.
func NewLocal(wait time.Duration) *Local {
	return &Local{slots: make(map[string]*slot), wait: wait}
}

var _ uow.Locker = (*Local)(nil)

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	var timeout <-chan time.Time
	if l.wait > 0 {
		t := time.NewTimer(l.wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case s.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.ch
				l.drop(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.drop(key, s)
		return nil, fmt.Errorf("%w: lock %s: %v", uow.ErrConcurrencyConflict, key, ctx.Err())
	case <-timeout:
		l.drop(key, s)
		return nil, fmt.Errorf("%w: lock %s: wait exceeded %s", uow.ErrConcurrencyConflict, key, l.wait)
	}
}

func (l *Local) drop(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys currently have holders or waiters.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
