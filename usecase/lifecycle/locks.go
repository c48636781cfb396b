package lifecycle

import "sync"

// userLocks hands out one mutex per user id. The registry itself is guarded
// by a short-lived mutex; the per-user mutex is held for the whole
// operation.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

// lock acquires the user's mutex and returns the unlock func.
func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	lk, ok := l.m[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.m[userID] = lk
	}
	l.mu.Unlock()

	lk.Lock()
	return lk.Unlock
}
