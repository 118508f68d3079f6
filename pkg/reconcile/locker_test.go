package reconcile

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func TestLockerSerializesSameRegion(t *testing.T) {
	l := NewLocker()
	id := uuid.New()
	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(id)
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time got %d", maxSeen)
	}
	if n := l.held(); n != 0 {
		t.Fatalf("expected lock entries to be released got %d", n)
	}
}

func TestLockerIndependentRegions(t *testing.T) {
	l := NewLocker()
	unlockA := l.Lock(uuid.New())
	done := make(chan struct{})
	go func() {
		unlock := l.Lock(uuid.New())
		unlock()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected a different region not to block")
	}
	unlockA()
	unlockA()
	if n := l.held(); n != 0 {
		t.Fatalf("expected no entries after release got %d", n)
	}
}
