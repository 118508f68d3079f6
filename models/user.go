package models

import (
	"time"
)

// Role names carried in the JWT role claim.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
)

// User is an account allowed to upload menus and submit price corrections.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index"`
	Username       string     `gorm:"size:255;not null;unique"`
	HashedPassword []byte     `gorm:"not null"`
	Role           string     `gorm:"size:32;not null;default:editor"`
}
