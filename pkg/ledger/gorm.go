package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/dberr"
	"menuprice/pkg/region"
)

// GormLedger stores updates in the price_updates table. Each commit runs in
// its own transaction holding a PostgreSQL advisory lock on the region, so
// the dedup lookup and the insert cannot interleave across processes.
type GormLedger struct {
	db     *gorm.DB
	Window time.Duration
	Now    func() time.Time
}

func NewGormLedger(db *gorm.DB, window time.Duration) *GormLedger {
	return &GormLedger{db: db, Window: window, Now: time.Now}
}

func unavailable(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
}

func toPersisted(m models.PriceUpdate) Persisted {
	return Persisted{
		ID: m.ID,
		PriceUpdate: PriceUpdate{
			ImageID:       m.MenuImageID,
			RegionID:      m.RegionID,
			BatchID:       m.BatchID,
			OriginalPrice: m.OriginalPrice,
			NewPrice:      m.NewPrice,
			Rect:          region.Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
			Source:        m.Source,
			Confidence:    m.Confidence,
			SubmittedBy:   m.SubmittedBy,
		},
		CreatedAt: m.CreatedAt,
	}
}

func (l *GormLedger) Commit(ctx context.Context, u PriceUpdate) (Persisted, error) {
	var out Persisted
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", u.RegionID.String()).Error; err != nil {
			return err
		}
		now := l.Now().UTC()
		if l.Window > 0 {
			var latest models.PriceUpdate
			err := tx.Where("region_id = ?", u.RegionID).Order("created_at DESC, id DESC").First(&latest).Error
			switch {
			case err == nil:
				prev := toPersisted(latest)
				if !prev.CreatedAt.Before(now.Add(-l.Window)) && prev.sameContent(u) {
					out = prev
					out.Deduplicated = true
					return nil
				}
			case !dberr.IsNotFound(err):
				return err
			}
		}
		m := models.PriceUpdate{
			ID:            region.NewID(),
			CreatedAt:     now,
			MenuImageID:   u.ImageID,
			RegionID:      u.RegionID,
			BatchID:       u.BatchID,
			OriginalPrice: u.OriginalPrice,
			NewPrice:      u.NewPrice,
			X:             u.Rect.X,
			Y:             u.Rect.Y,
			Width:         u.Rect.Width,
			Height:        u.Rect.Height,
			Source:        u.Source,
			Confidence:    u.Confidence,
			SubmittedBy:   u.SubmittedBy,
		}
		if err := tx.Omit("MenuImage").Create(&m).Error; err != nil {
			return err
		}
		out = toPersisted(m)
		return nil
	})
	if err != nil {
		return Persisted{}, unavailable(err)
	}
	return out, nil
}

func (l *GormLedger) list(ctx context.Context, column string, id uuid.UUID) ([]Persisted, error) {
	var rows []models.PriceUpdate
	if err := l.db.WithContext(ctx).Where(column+" = ?", id).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, unavailable(err)
	}
	out := make([]Persisted, 0, len(rows))
	for _, r := range rows {
		out = append(out, toPersisted(r))
	}
	return out, nil
}

func (l *GormLedger) ListByImage(ctx context.Context, imageID uuid.UUID) ([]Persisted, error) {
	return l.list(ctx, "menu_image_id", imageID)
}

func (l *GormLedger) ListByRegion(ctx context.Context, regionID uuid.UUID) ([]Persisted, error) {
	return l.list(ctx, "region_id", regionID)
}

func (l *GormLedger) LatestForRegion(ctx context.Context, regionID uuid.UUID) (*Persisted, error) {
	var m models.PriceUpdate
	err := l.db.WithContext(ctx).Where("region_id = ?", regionID).Order("created_at DESC, id DESC").First(&m).Error
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	p := toPersisted(m)
	return &p, nil
}
