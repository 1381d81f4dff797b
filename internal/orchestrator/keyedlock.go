package orchestrator

import "sync"

// KeyedLock is a non-blocking mutex per key. Keys are dropped from the map on
// unlock, so memory stays proportional to the number of held locks.
type KeyedLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedLock returns an empty lock set.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{held: map[string]struct{}{}}
}

// TryLock acquires key if it is free. The returned unlock is idempotent.
func (l *KeyedLock) TryLock(key string) (unlock func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently locked.
func (l *KeyedLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
