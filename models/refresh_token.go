package models

import "time"

// RefreshToken is one editor session. Login issues it and POST /refresh
// revokes it in exchange for a new one, so a token is spent at most once.
type RefreshToken struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint `gorm:"index;not null"`
	// sha256 hex of the opaque token handed to the client
	TokenHash string    `gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Revoked   bool      `gorm:"not null;default:false"`
}
