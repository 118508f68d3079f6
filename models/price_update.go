package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceUpdate is one accepted price change. Rows are never updated: a
// correction is a new row. Coordinates are a snapshot of the region at
// submission time. Regions may be removed later, so RegionID has no foreign key.
type PriceUpdate struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt     time.Time `gorm:"index"`
	MenuImageID   uuid.UUID `gorm:"type:uuid;not null;index"`
	MenuImage     MenuImage `gorm:"foreignKey:MenuImageID;references:ID"`
	RegionID      uuid.UUID `gorm:"type:uuid;not null;index:idx_price_updates_region_created"`
	BatchID       uuid.UUID `gorm:"type:uuid;index"`
	OriginalPrice string    `gorm:"size:20;not null"`
	NewPrice      string    `gorm:"size:20;not null"`
	X             float64   `gorm:"not null"`
	Y             float64   `gorm:"not null"`
	Width         float64   `gorm:"not null"`
	Height        float64   `gorm:"not null"`
	Source        string    `gorm:"size:16;not null"`
	Confidence    float64
	SubmittedBy   string `gorm:"size:255"`
}
