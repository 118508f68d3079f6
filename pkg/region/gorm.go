package region

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"menuprice/models"
	"menuprice/pkg/dberr"
)

// GormStore persists regions in the regions table. Image bounds come from
// menu_images; duplicates are rejected by a pre-check and, under races, by
// the idx_region_geometry unique index.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func toRegion(m models.Region) Region {
	return Region{
		ID:        m.ID,
		ImageID:   m.MenuImageID,
		Rect:      Rect{X: m.X, Y: m.Y, Width: m.Width, Height: m.Height},
		State:     State(m.State),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (s *GormStore) checkRect(ctx context.Context, imageID uuid.UUID, r Rect) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var img models.MenuImage
	if err := s.db.WithContext(ctx).Select("id", "width", "height").Where("id = ?", imageID).First(&img).Error; err != nil {
		if dberr.IsNotFound(err) {
			return ErrImageNotFound
		}
		return err
	}
	return r.CheckBounds(img.Width, img.Height)
}

func (s *GormStore) hasDuplicate(ctx context.Context, imageID uuid.UUID, r Rect, except uuid.UUID) (bool, error) {
	var cnt int64
	q := s.db.WithContext(ctx).Model(&models.Region{}).
		Where("menu_image_id = ? AND x = ? AND y = ? AND width = ? AND height = ?", imageID, r.X, r.Y, r.Width, r.Height)
	if except != uuid.Nil {
		q = q.Where("id <> ?", except)
	}
	if err := q.Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (s *GormStore) Add(ctx context.Context, imageID uuid.UUID, r Rect) (Region, error) {
	if err := s.checkRect(ctx, imageID, r); err != nil {
		return Region{}, err
	}
	dup, err := s.hasDuplicate(ctx, imageID, r, uuid.Nil)
	if err != nil {
		return Region{}, err
	}
	if dup {
		return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
	}
	m := models.Region{
		ID:          NewID(),
		MenuImageID: imageID,
		X:           r.X,
		Y:           r.Y,
		Width:       r.Width,
		Height:      r.Height,
		State:       string(StateDraft),
	}
	if err := s.db.WithContext(ctx).Omit("MenuImage").Create(&m).Error; err != nil {
		if dberr.IsUniqueViolation(err) {
			return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
		}
		return Region{}, err
	}
	return toRegion(m), nil
}

func (s *GormStore) Remove(ctx context.Context, regionID uuid.UUID) error {
	res := s.db.WithContext(ctx).Where("id = ?", regionID).Delete(&models.Region{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRegionNotFound
	}
	return nil
}

func (s *GormStore) List(ctx context.Context, imageID uuid.UUID) ([]Region, error) {
	var rows []models.Region
	if err := s.db.WithContext(ctx).Where("menu_image_id = ?", imageID).Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Region, 0, len(rows))
	for _, m := range rows {
		out = append(out, toRegion(m))
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, regionID uuid.UUID) (Region, error) {
	var m models.Region
	if err := s.db.WithContext(ctx).Where("id = ?", regionID).First(&m).Error; err != nil {
		if dberr.IsNotFound(err) {
			return Region{}, ErrRegionNotFound
		}
		return Region{}, err
	}
	return toRegion(m), nil
}

func (s *GormStore) FindByRect(ctx context.Context, imageID uuid.UUID, r Rect) (Region, error) {
	var m models.Region
	err := s.db.WithContext(ctx).
		Where("menu_image_id = ? AND x = ? AND y = ? AND width = ? AND height = ?", imageID, r.X, r.Y, r.Width, r.Height).
		First(&m).Error
	if err != nil {
		if dberr.IsNotFound(err) {
			return Region{}, ErrRegionNotFound
		}
		return Region{}, err
	}
	return toRegion(m), nil
}

// Transition uses a conditional update on the current state so concurrent
// writers cannot skip a lifecycle step.
func (s *GormStore) Transition(ctx context.Context, regionID uuid.UUID, to State) (Region, error) {
	var out Region
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Region
		if err := tx.Where("id = ?", regionID).First(&m).Error; err != nil {
			if dberr.IsNotFound(err) {
				return ErrRegionNotFound
			}
			return err
		}
		from := State(m.State)
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}
		res := tx.Model(&models.Region{}).Where("id = ? AND state = ?", regionID, m.State).Update("state", string(to))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: state changed concurrently", ErrInvalidTransition)
		}
		m.State = string(to)
		out = toRegion(m)
		return nil
	})
	return out, err
}

func (s *GormStore) Move(ctx context.Context, regionID uuid.UUID, r Rect) (Region, error) {
	current, err := s.Get(ctx, regionID)
	if err != nil {
		return Region{}, err
	}
	if err := s.checkRect(ctx, current.ImageID, r); err != nil {
		return Region{}, err
	}
	dup, err := s.hasDuplicate(ctx, current.ImageID, r, regionID)
	if err != nil {
		return Region{}, err
	}
	if dup {
		return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
	}
	err = s.db.WithContext(ctx).Model(&models.Region{}).Where("id = ?", regionID).Updates(map[string]interface{}{
		"x":      r.X,
		"y":      r.Y,
		"width":  r.Width,
		"height": r.Height,
		"state":  string(StateDraft),
	}).Error
	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return Region{}, fmt.Errorf("%w: %+v", ErrDuplicateRegion, r)
		}
		return Region{}, err
	}
	return s.Get(ctx, regionID)
}
