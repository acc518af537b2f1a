package models

import (
	"time"

	"gorm.io/datatypes"
)

// Transfer modes recorded in the audit log.
const (
	// TransferModeQuantity marks a transfer requested by type and count.
	TransferModeQuantity = "quantity"
	// TransferModeBarcode marks a transfer requested by explicit barcodes.
	TransferModeBarcode = "barcode"
	// TransferModeReturn marks stock returned to the depot on filial deletion.
	TransferModeReturn = "return"
)

// TransferLog records one committed stock movement for auditing.
type TransferLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Mode       string `gorm:"type:text;not null"` // One of the TransferMode constants.
	FilialID   uint64 `gorm:"not null;index"`     // Filial the movement involved.
	FilialName string `gorm:"type:text;not null"` // Filial display name at transfer time.

	CardCount int            `gorm:"not null"`            // Total cards moved.
	Breakdown datatypes.JSON `gorm:"type:jsonb;not null"` // Per-type counts, keyed by type name.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Movement timestamp.
}
