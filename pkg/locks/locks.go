package locks

import (
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a lock for the requested name is already held
// and the bounded wait expires.
var ErrBusy = errors.New("resource busy: another operation is in progress for this file")

// Arena is a set of named mutual-exclusion locks. At most one holder exists
// per name; different names are fully independent. Entries are removed once
// the last waiter releases, so the arena does not grow with the number of
// filenames ever seen.
type Arena struct {
	mu    sync.Mutex
	wait  time.Duration
	locks map[string]*namedLock
}

type namedLock struct {
	ch   chan struct{}
	refs int
}

// NewArena creates an Arena. wait bounds how long Acquire blocks for a
// contended name before failing with ErrBusy.
func NewArena(wait time.Duration) *Arena {
	return &Arena{
		wait:  wait,
		locks: make(map[string]*namedLock),
	}
}

// Acquire takes the lock for name, waiting up to the arena's bound if it is
// contended. The returned release function must be called on every exit path;
// releasing twice is a no-op.
func (a *Arena) Acquire(name string) (func(), error) {
	a.mu.Lock()
	nl, ok := a.locks[name]
	if !ok {
		nl = &namedLock{ch: make(chan struct{}, 1)}
		a.locks[name] = nl
	}
	nl.refs++
	a.mu.Unlock()

	timer := time.NewTimer(a.wait)
	defer timer.Stop()

	select {
	case nl.ch <- struct{}{}:
		var once sync.Once
		release := func() {
			once.Do(func() {
				<-nl.ch
				a.unref(name, nl)
			})
		}
		return release, nil
	case <-timer.C:
		a.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(a.locks, name)
		}
		a.mu.Unlock()
		return nil, ErrBusy
	}
}

func (a *Arena) unref(name string, nl *namedLock) {
	a.mu.Lock()
	nl.refs--
	if nl.refs == 0 {
		delete(a.locks, name)
	}
	a.mu.Unlock()
}
