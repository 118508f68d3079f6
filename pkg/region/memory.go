package region

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	bounds  BoundsFunc
	regions map[uuid.UUID]*Region
	order   map[uuid.UUID][]uuid.UUID // image id -> region ids in insertion order
	now     func() time.Time
}

// NewMemoryStore returns an empty store that looks image sizes up via bounds.
func NewMemoryStore(bounds BoundsFunc) *MemoryStore {
	return &MemoryStore{
		bounds:  bounds,
		regions: make(map[uuid.UUID]*Region),
		order:   make(map[uuid.UUID][]uuid.UUID),
		now:     time.Now,
	}
}

func (s *MemoryStore) checkRect(ctx context.Context, imageID uuid.UUID, r Rect) error {
	if err := r.Validate(); err != nil {
		return err
	}
	w, h, err := s.bounds(ctx, imageID)
	if err != nil {
		return err
	}
	return r.CheckBounds(w, h)
}

// duplicateLocked reports whether another region of the image has rect r.
func (s *MemoryStore) duplicateLocked(imageID uuid.UUID, r Rect, except uuid.UUID) bool {
	for _, id := range s.order[imageID] {
		if id != except && s.regions[id].Rect == r {
			return true
		}
	}
	return false
}

func (s *MemoryStore) Add(ctx context.Context, imageID uuid.UUID, r Rect) (Region, error) {
	if err := s.checkRect(ctx, imageID, r); err != nil {
		return Region{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duplicateLocked(imageID, r, uuid.Nil) {
		return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
	}
	now := s.now()
	reg := &Region{ID: NewID(), ImageID: imageID, Rect: r, State: StateDraft, CreatedAt: now, UpdatedAt: now}
	s.regions[reg.ID] = reg
	s.order[imageID] = append(s.order[imageID], reg.ID)
	return *reg, nil
}

func (s *MemoryStore) Remove(_ context.Context, regionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regions[regionID]
	if !ok {
		return ErrRegionNotFound
	}
	ids := s.order[reg.ImageID]
	for i, id := range ids {
		if id == regionID {
			s.order[reg.ImageID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	delete(s.regions, regionID)
	return nil
}

func (s *MemoryStore) List(_ context.Context, imageID uuid.UUID) ([]Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Region, 0, len(s.order[imageID]))
	for _, id := range s.order[imageID] {
		out = append(out, *s.regions[id])
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, regionID uuid.UUID) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regions[regionID]
	if !ok {
		return Region{}, ErrRegionNotFound
	}
	return *reg, nil
}

func (s *MemoryStore) FindByRect(_ context.Context, imageID uuid.UUID, r Rect) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order[imageID] {
		if s.regions[id].Rect == r {
			return *s.regions[id], nil
		}
	}
	return Region{}, ErrRegionNotFound
}

func (s *MemoryStore) Transition(_ context.Context, regionID uuid.UUID, to State) (Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regions[regionID]
	if !ok {
		return Region{}, ErrRegionNotFound
	}
	if !CanTransition(reg.State, to) {
		return Region{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, reg.State, to)
	}
	reg.State = to
	reg.UpdatedAt = s.now()
	return *reg, nil
}

func (s *MemoryStore) Move(ctx context.Context, regionID uuid.UUID, r Rect) (Region, error) {
	current, err := s.Get(ctx, regionID)
	if err != nil {
		return Region{}, err
	}
	if err := s.checkRect(ctx, current.ImageID, r); err != nil {
		return Region{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regions[regionID]
	if !ok {
		return Region{}, ErrRegionNotFound
	}
	if s.duplicateLocked(reg.ImageID, r, regionID) {
		return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
	}
	reg.Rect = r
	reg.State = StateDraft
	reg.UpdatedAt = s.now()
	return *reg, nil
}
