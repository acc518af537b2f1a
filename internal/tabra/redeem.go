package tabra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
)

// Redemptions consumes cards exactly once and issues receipts.
type Redemptions struct {
	db *gorm.DB
}

// NewRedemptions constructs a Redemptions engine.
func NewRedemptions(db *gorm.DB) *Redemptions {
	return &Redemptions{db: db}
}

// RedeemParams holds inputs for a redemption attempt.
type RedeemParams struct {
	Barcode           string  // Scanned barcode, may still carry separators.
	CustomerFirstName string  // Required customer first name.
	CustomerLastName  string  // Required customer last name.
	CustomerPhone     string  // Required customer phone.
	PerformingFilial  *uint64 // Caller's filial; nil for the admin entry point.
	FilialLabel       string  // Display label recorded when the admin redeems a depot card.
}

// RedeemResult carries the issued receipt and the final card state.
type RedeemResult struct {
	ReceiptNumber string
	Card          models.Card
}

// Redeem marks the card used, stamps the redemption time, captures the
// customer, records the redeeming filial's name as a plain string so
// history survives filial renames and deletions, and issues a unique
// receipt number. The check-and-set runs under a row lock: of two
// concurrent attempts on one barcode exactly one succeeds, the other
// observes the post-state and fails with a ConflictError.
//
// When PerformingFilial is set, the card must currently sit at that
// filial; otherwise the call fails with a ForbiddenError. The admin
// entry point carries no location restriction.
func (s *Redemptions) Redeem(ctx context.Context, params RedeemParams) (*RedeemResult, error) {
	barcode := NormalizeBarcode(params.Barcode)
	if errValidate := ValidateBarcode(barcode); errValidate != nil {
		return nil, errValidate
	}
	firstName := strings.TrimSpace(params.CustomerFirstName)
	if firstName == "" {
		return nil, &ValidationError{Field: "customerFirstName", Reason: "cannot be blank"}
	}
	lastName := strings.TrimSpace(params.CustomerLastName)
	if lastName == "" {
		return nil, &ValidationError{Field: "customerLastName", Reason: "cannot be blank"}
	}
	phone := strings.TrimSpace(params.CustomerPhone)
	if phone == "" {
		return nil, &ValidationError{Field: "customerPhone", Reason: "cannot be blank"}
	}

	var result RedeemResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, errLock := lockCardByBarcode(tx, barcode)
		if errLock != nil {
			return errLock
		}
		if card.IsUsed {
			return &ConflictError{Reason: "card already used", Barcodes: []string{barcode}}
		}

		if params.PerformingFilial != nil {
			if card.LocationFilialID == nil || *card.LocationFilialID != *params.PerformingFilial {
				return &ForbiddenError{Reason: fmt.Sprintf("card %s is not in your filial's stock", barcode)}
			}
		}

		filialName, errName := resolveFilialLabel(tx, card, params)
		if errName != nil {
			return errName
		}

		receipt, errReceipt := issueReceipt(tx)
		if errReceipt != nil {
			return errReceipt
		}

		// The WHERE clause re-checks is_used so a racing redeemer that
		// slipped past the row lock still loses here instead of
		// double-booking the receipt.
		now := time.Now().UTC()
		res := tx.Model(&models.Card{}).
			Where("id = ? AND is_used = ?", card.ID, false).
			Updates(map[string]any{
				"is_used":             true,
				"used_at":             now,
				"receipt_number":      receipt,
				"filial_name":         filialName,
				"customer_first_name": firstName,
				"customer_last_name":  lastName,
				"customer_phone":      phone,
				"updated_at":          now,
			})
		if res.Error != nil {
			return fmt.Errorf("redeem card: %w", res.Error)
		}
		if res.RowsAffected != 1 {
			return &ConflictError{Reason: "card already used", Barcodes: []string{barcode}}
		}

		card.IsUsed = true
		card.UsedAt = &now
		card.ReceiptNumber = &receipt
		card.FilialName = &filialName
		card.CustomerFirstName = &firstName
		card.CustomerLastName = &lastName
		card.CustomerPhone = &phone
		card.UpdatedAt = now

		var cardType models.TabraType
		if errType := tx.First(&cardType, card.TabraTypeID).Error; errType == nil {
			card.TabraType = &cardType
		} else if !errors.Is(errType, gorm.ErrRecordNotFound) {
			return fmt.Errorf("load type: %w", errType)
		}

		result = RedeemResult{ReceiptNumber: receipt, Card: *card}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &result, nil
}

// resolveFilialLabel picks the display name frozen into the card record.
// Filial callers always stamp their own name. The admin entry point
// stamps the card's current filial when it has one, then the caller's
// label, then a depot marker.
func resolveFilialLabel(tx *gorm.DB, card *models.Card, params RedeemParams) (string, error) {
	locationID := card.LocationFilialID
	if params.PerformingFilial != nil {
		locationID = params.PerformingFilial
	}
	if locationID != nil {
		filial, errFind := findFilial(tx, *locationID)
		if errFind != nil {
			return "", errFind
		}
		return filial.Name, nil
	}
	if label := strings.TrimSpace(params.FilialLabel); label != "" {
		return label, nil
	}
	return "central", nil
}

// issueReceipt generates a receipt number not yet present in the
// ledger, retrying on collision within a bounded budget.
func issueReceipt(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < receiptAttempts; attempt++ {
		candidate, errGen := randomReceiptNumber()
		if errGen != nil {
			return "", errGen
		}
		taken, errCheck := receiptTaken(tx, candidate)
		if errCheck != nil {
			return "", errCheck
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", &ExhaustedError{What: "receipt number", Attempts: receiptAttempts}
}
