// Package region keeps the rectangles users draw over menu images and their
// lifecycle from draft to resolved or rejected.
package region

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidGeometry   = errors.New("invalid region geometry")
	ErrDuplicateRegion   = errors.New("region with identical coordinates already exists")
	ErrRegionNotFound    = errors.New("region not found")
	ErrImageNotFound     = errors.New("menu image not found")
	ErrInvalidTransition = errors.New("invalid region state transition")
)

// NewID returns a time-ordered (version 7) id. Ids from one process are
// strictly increasing, so sorting by id keeps creation order when timestamps tie.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// State is a region's lifecycle state.
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateResolved  State = "resolved"
	StateRejected  State = "rejected"
)

// transitions lists the allowed moves. Resolved and rejected regions can be
// submitted again to record a correction.
var transitions = map[State][]State{
	StateDraft:     {StateSubmitted},
	StateSubmitted: {StateSubmitted, StateResolved, StateRejected},
	StateResolved:  {StateSubmitted},
	StateRejected:  {StateSubmitted},
}

// CanTransition reports whether a region in state from may move to state to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Rect is a rectangle in image pixel space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate checks the rectangle on its own, without an image.
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive (got %gx%g)", ErrInvalidGeometry, r.Width, r.Height)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("%w: negative origin (%g,%g)", ErrInvalidGeometry, r.X, r.Y)
	}
	return nil
}

// CheckBounds validates the rectangle and that it lies inside a
// width x height image.
func (r Rect) CheckBounds(width, height int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.X+r.Width > float64(width) || r.Y+r.Height > float64(height) {
		return fmt.Errorf("%w: %gx%g+%g+%g outside %dx%d image", ErrInvalidGeometry, r.Width, r.Height, r.X, r.Y, width, height)
	}
	return nil
}

// Region is a user-drawn rectangle over one menu image.
type Region struct {
	ID        uuid.UUID `json:"id"`
	ImageID   uuid.UUID `json:"image_id"`
	Rect      Rect      `json:"coordinates"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store holds regions per image.
type Store interface {
	Add(ctx context.Context, imageID uuid.UUID, r Rect) (Region, error)
	Remove(ctx context.Context, regionID uuid.UUID) error
	// List returns the image's regions in insertion order.
	List(ctx context.Context, imageID uuid.UUID) ([]Region, error)
	Get(ctx context.Context, regionID uuid.UUID) (Region, error)
	// FindByRect returns the image's region with exactly these coordinates.
	FindByRect(ctx context.Context, imageID uuid.UUID, r Rect) (Region, error)
	Transition(ctx context.Context, regionID uuid.UUID, to State) (Region, error)
	// Move replaces the coordinates and returns the region to draft.
	Move(ctx context.Context, regionID uuid.UUID, r Rect) (Region, error)
}

// BoundsFunc returns the pixel size of an image, or ErrImageNotFound.
type BoundsFunc func(ctx context.Context, imageID uuid.UUID) (width, height int, err error)
