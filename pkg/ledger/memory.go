package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"menuprice/pkg/region"
)

// MemoryLedger keeps the history in process. Safe for concurrent use.
type MemoryLedger struct {
	mu      sync.Mutex
	records []Persisted
	Window  time.Duration
	Now     func() time.Time
	// Err, when set, makes every call fail as if the store were unreachable.
	Err error
}

func NewMemoryLedger(window time.Duration) *MemoryLedger {
	return &MemoryLedger{Window: window, Now: time.Now}
}

func (l *MemoryLedger) check() error {
	if l.Err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, l.Err)
	}
	return nil
}

func (l *MemoryLedger) Commit(ctx context.Context, u PriceUpdate) (Persisted, error) {
	if err := ctx.Err(); err != nil {
		return Persisted{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(); err != nil {
		return Persisted{}, err
	}
	now := l.Now()
	if l.Window > 0 {
		for i := len(l.records) - 1; i >= 0; i-- {
			p := l.records[i]
			if p.RegionID != u.RegionID {
				continue
			}
			if now.Sub(p.CreatedAt) <= l.Window && p.sameContent(u) {
				p.Deduplicated = true
				return p, nil
			}
			break
		}
	}
	p := Persisted{ID: region.NewID(), PriceUpdate: u, CreatedAt: now}
	l.records = append(l.records, p)
	return p, nil
}

func (l *MemoryLedger) filter(keep func(Persisted) bool) ([]Persisted, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.check(); err != nil {
		return nil, err
	}
	out := []Persisted{}
	for _, p := range l.records {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *MemoryLedger) ListByImage(_ context.Context, imageID uuid.UUID) ([]Persisted, error) {
	return l.filter(func(p Persisted) bool { return p.ImageID == imageID })
}

func (l *MemoryLedger) ListByRegion(_ context.Context, regionID uuid.UUID) ([]Persisted, error) {
	return l.filter(func(p Persisted) bool { return p.RegionID == regionID })
}

func (l *MemoryLedger) LatestForRegion(ctx context.Context, regionID uuid.UUID) (*Persisted, error) {
	list, err := l.ListByRegion(ctx, regionID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	p := list[len(list)-1]
	return &p, nil
}
