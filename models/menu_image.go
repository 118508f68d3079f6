package models

import (
	"time"

	"github.com/google/uuid"
)

// MenuImage is an uploaded menu photo. Only ProcessedImageURL may change after creation.
type MenuImage struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
	OriginalImageURL  string  `gorm:"type:text;not null;uniqueIndex"`
	ProcessedImageURL *string `gorm:"type:text"`
	ContentType       string  `gorm:"size:128"`
	Width             int     `gorm:"not null"`
	Height            int     `gorm:"not null"`
	UploadedBy        string  `gorm:"size:255"`
}
