package reconcile

import (
	"sync"

	"github.com/google/uuid"
)

// Locker serializes work per region. Entries are dropped once no goroutine
// holds or waits for them.
type Locker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[uuid.UUID]*keyLock)}
}

// Lock blocks until the region's lock is held and returns its release func.
func (l *Locker) Lock(id uuid.UUID) (unlock func()) {
	l.mu.Lock()
	k, ok := l.locks[id]
	if !ok {
		k = &keyLock{}
		l.locks[id] = k
	}
	k.refs++
	l.mu.Unlock()

	k.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Unlock()
			l.mu.Lock()
			k.refs--
			if k.refs == 0 {
				delete(l.locks, id)
			}
			l.mu.Unlock()
		})
	}
}
