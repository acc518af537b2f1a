package models

import "time"

// Card is a single serialized gift card. Its barcode is permanent:
// barcodes are never reassigned, even after a card row is deleted.
type Card struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	TabraTypeID uint64     `gorm:"not null;index"`                 // Owning type, immutable after creation.
	TabraType   *TabraType `gorm:"foreignKey:TabraTypeID"`         // Owning type record.
	Barcode     string     `gorm:"type:text;not null;uniqueIndex"` // 13 decimal digits, globally unique.

	LocationFilialID *uint64 `gorm:"index"` // Current filial; nil means the central depot.

	IsUsed        bool       `gorm:"not null;default:false;index"` // Redemption flag, transitions false->true once.
	ReceiptNumber *string    `gorm:"type:text;uniqueIndex"`        // Receipt issued at redemption.
	UsedAt        *time.Time `gorm:"index"`                        // Redemption timestamp.
	FilialName    *string    `gorm:"type:text"`                    // Redeeming filial display name, kept verbatim for history.

	CustomerFirstName *string `gorm:"type:text"` // Customer first name, set at redemption.
	CustomerLastName  *string `gorm:"type:text"` // Customer last name, set at redemption.
	CustomerPhone     *string `gorm:"type:text"` // Customer phone, set at redemption.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last mutation timestamp.
}
