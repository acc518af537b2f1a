package models

import "time"

// TabraType defines a sellable gift-card denomination.
type TabraType struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name           string `gorm:"type:text;not null"`             // Display name.
	FiscalCodeName string `gorm:"type:text;not null;uniqueIndex"` // Fiscal registration code.
	Price          string `gorm:"type:text;not null"`             // Price as entered, never reformatted.

	Cards []Card `gorm:"foreignKey:TabraTypeID"` // Cards issued under this type.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
