// Package ledger is the append-only history of accepted price updates.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"menuprice/pkg/region"
)

// ErrPersistenceUnavailable wraps every storage failure. Callers do not retry.
var ErrPersistenceUnavailable = errors.New("persistence unavailable")

// DefaultDedupWindow is how long an identical commit returns the earlier record.
const DefaultDedupWindow = 10 * time.Minute

// PriceUpdate is a reconciled price change ready to be committed.
type PriceUpdate struct {
	ImageID       uuid.UUID   `json:"menu_image_id"`
	RegionID      uuid.UUID   `json:"region_id"`
	BatchID       uuid.UUID   `json:"batch_id"`
	OriginalPrice string      `json:"original_price"`
	NewPrice      string      `json:"new_price"`
	Rect          region.Rect `json:"coordinates"`
	Source        string      `json:"source"`
	Confidence    float64     `json:"confidence"`
	SubmittedBy   string      `json:"submitted_by,omitempty"`
}

// Persisted is a committed PriceUpdate. Deduplicated is set when Commit
// returned an existing record instead of writing a new one.
type Persisted struct {
	ID uuid.UUID `json:"id"`
	PriceUpdate
	CreatedAt    time.Time `json:"created_at"`
	Deduplicated bool      `json:"deduplicated,omitempty"`
}

// sameContent reports whether p records the same change as u.
func (p Persisted) sameContent(u PriceUpdate) bool {
	return p.RegionID == u.RegionID &&
		p.OriginalPrice == u.OriginalPrice &&
		p.NewPrice == u.NewPrice &&
		p.Rect == u.Rect
}

type Ledger interface {
	// Commit stores u. When the region's newest record is identical to u and
	// falls within the dedup window, that record is returned instead. An older
	// identical record does not count, so reverting a change is recorded.
	Commit(ctx context.Context, u PriceUpdate) (Persisted, error)
	// ListByImage returns the image's updates oldest first.
	ListByImage(ctx context.Context, imageID uuid.UUID) ([]Persisted, error)
	// ListByRegion returns the region's updates oldest first.
	ListByRegion(ctx context.Context, regionID uuid.UUID) ([]Persisted, error)
	// LatestForRegion returns the newest update, or nil if there is none.
	LatestForRegion(ctx context.Context, regionID uuid.UUID) (*Persisted, error)
}
