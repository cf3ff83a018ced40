package session

import "sync"

// Locker serializes work per call id. Different calls never contend.
//
// Holders of a call's lock are the only writers of that call's session for
// the duration of the callback, so a caller/assistant pair is appended
// contiguously and removal is ordered after any in-progress append.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*keyLock)}
}

// Lock blocks until the lock for callID is held and returns the function
// that releases it. Entries are dropped once no goroutine holds or waits
// on them.
func (l *Locker) Lock(callID string) (unlock func()) {
	l.mu.Lock()
	kl, ok := l.locks[callID]
	if !ok {
		kl = &keyLock{}
		l.locks[callID] = kl
	}
	kl.refs++
	l.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()

			l.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(l.locks, callID)
			}
			l.mu.Unlock()
		})
	}
}

// size returns the number of tracked keys.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
