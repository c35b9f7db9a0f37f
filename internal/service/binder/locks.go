package binder

import "sync"

// revisionLocks serializes binding work per revision so two concurrent
// bindings cannot interleave their cleanup and update steps.
type revisionLocks struct {
	mu    sync.Mutex
	locks map[string]*revisionLock
}

type revisionLock struct {
	mu   sync.Mutex
	refs int
}

func newRevisionLocks() *revisionLocks {
	return &revisionLocks{locks: make(map[string]*revisionLock)}
}

// lock acquires the mutex for a revision and returns its release func.
// Entries are dropped once the last holder releases.
func (r *revisionLocks) lock(revisionID string) func() {
	r.mu.Lock()
	l, ok := r.locks[revisionID]
	if !ok {
		l = &revisionLock{}
		r.locks[revisionID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, revisionID)
		}
		r.mu.Unlock()
	}
}
