// Package tabra implements the gift-card inventory and redemption
// engine: catalog and batch issuance, atomic depot-to-filial transfers,
// exactly-once redemption, filial management and reporting. All card
// state lives in the database; stock figures are always derived counts,
// never separately maintained totals.
package tabra

import (
	"errors"
	"fmt"
	"time"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The helpers below are the only code paths that mutate card rows.
// Every caller runs them inside a single gorm transaction, so a failed
// batch never leaves partial effects behind. Row locks serialize
// contending writers on PostgreSQL; SQLite serializes writers on its
// own, so the lock clause is a no-op there.

// lockCardByBarcode loads a card FOR UPDATE by its barcode.
func lockCardByBarcode(tx *gorm.DB, barcode string) (*models.Card, error) {
	var card models.Card
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("barcode = ?", barcode).
		First(&card).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "card", Key: barcode}
		}
		return nil, fmt.Errorf("lock card %s: %w", barcode, errFind)
	}
	return &card, nil
}

// lockCardByID loads a card FOR UPDATE by its primary key.
func lockCardByID(tx *gorm.DB, id uint64) (*models.Card, error) {
	var card models.Card
	if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&card, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "card", Key: fmt.Sprintf("%d", id)}
		}
		return nil, fmt.Errorf("lock card %d: %w", id, errFind)
	}
	return &card, nil
}

// relocateDepotCards moves the given unused depot cards to a filial.
// The guarded UPDATE re-checks location and usage, so a concurrent
// writer that claimed any of the cards first makes the whole batch fail
// with a ConflictError and the transaction rolls back.
func relocateDepotCards(tx *gorm.DB, ids []uint64, toFilialID uint64) error {
	if len(ids) == 0 {
		return nil
	}
	res := tx.Model(&models.Card{}).
		Where("id IN ? AND location_filial_id IS NULL AND is_used = ?", ids, false).
		Updates(map[string]any{
			"location_filial_id": toFilialID,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("relocate cards: %w", res.Error)
	}
	if res.RowsAffected != int64(len(ids)) {
		return &ConflictError{Reason: "stock changed during transfer, no cards were moved"}
	}
	return nil
}

// returnFilialCards moves every unused card at a filial back to the
// depot and returns how many moved. Used cards are history and stay put.
func returnFilialCards(tx *gorm.DB, filialID uint64) (int64, error) {
	res := tx.Model(&models.Card{}).
		Where("location_filial_id = ? AND is_used = ?", filialID, false).
		Updates(map[string]any{
			"location_filial_id": nil,
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("return cards to depot: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// barcodeTaken reports whether a barcode already exists.
func barcodeTaken(tx *gorm.DB, barcode string) (bool, error) {
	var count int64
	if errCount := tx.Model(&models.Card{}).
		Where("barcode = ?", barcode).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("check barcode: %w", errCount)
	}
	return count > 0, nil
}

// receiptTaken reports whether a receipt number was already issued.
func receiptTaken(tx *gorm.DB, receipt string) (bool, error) {
	var count int64
	if errCount := tx.Model(&models.Card{}).
		Where("receipt_number = ?", receipt).
		Count(&count).Error; errCount != nil {
		return false, fmt.Errorf("check receipt: %w", errCount)
	}
	return count > 0, nil
}
