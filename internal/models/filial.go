package models

import "time"

// Filial is a branch location that holds stock and performs redemptions.
type Filial struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null"`             // Display name.
	Code     string `gorm:"type:text;not null;uniqueIndex"` // Login identifier.
	Password string `gorm:"type:text;not null"`             // Bcrypt password hash.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
