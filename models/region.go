package models

import (
	"time"

	"github.com/google/uuid"
)

// Region is a rectangle drawn over a menu image, in image pixel space.
// The composite unique index rejects two regions with identical coordinates
// on the same image.
type Region struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
	MenuImageID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_region_geometry"`
	MenuImage   MenuImage `gorm:"foreignKey:MenuImageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	X           float64   `gorm:"not null;uniqueIndex:idx_region_geometry"`
	Y           float64   `gorm:"not null;uniqueIndex:idx_region_geometry"`
	Width       float64   `gorm:"not null;uniqueIndex:idx_region_geometry"`
	Height      float64   `gorm:"not null;uniqueIndex:idx_region_geometry"`
	State       string    `gorm:"size:16;not null;default:draft;index"`
}
