package tabra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Transfers moves cards between the depot and filials.
type Transfers struct {
	db *gorm.DB
}

// NewTransfers constructs a Transfers engine.
func NewTransfers(db *gorm.DB) *Transfers {
	return &Transfers{db: db}
}

// TransferResult describes one committed transfer.
type TransferResult struct {
	Transferred int            // Cards moved.
	ToFilial    string         // Destination filial display name.
	ByType      map[string]int // Moved counts keyed by type name.
}

// ByQuantity moves quantity unused depot cards of one type to a filial,
// oldest first. Either all requested cards move or none do; two
// concurrent calls can never jointly move more cards than the depot
// holds.
func (s *Transfers) ByQuantity(ctx context.Context, toFilialID, typeID uint64, quantity int) (*TransferResult, error) {
	if quantity < 1 {
		return nil, &ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}

	var result TransferResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filial, errFilial := findFilial(tx, toFilialID)
		if errFilial != nil {
			return errFilial
		}
		var cardType models.TabraType
		if errType := tx.First(&cardType, typeID).Error; errType != nil {
			if errors.Is(errType, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "type", Key: fmt.Sprintf("%d", typeID)}
			}
			return fmt.Errorf("get type: %w", errType)
		}

		// Oldest-created-first keeps selection deterministic and avoids
		// the same recent cards being picked over and over.
		var ids []uint64
		if errPluck := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Model(&models.Card{}).
			Where("tabra_type_id = ? AND location_filial_id IS NULL AND is_used = ?", typeID, false).
			Order("created_at ASC, id ASC").
			Limit(quantity).
			Pluck("id", &ids).Error; errPluck != nil {
			return fmt.Errorf("select depot cards: %w", errPluck)
		}
		if len(ids) < quantity {
			return &InsufficientStockError{Available: len(ids), Requested: quantity}
		}

		if errMove := relocateDepotCards(tx, ids, toFilialID); errMove != nil {
			return errMove
		}

		byType := map[string]int{cardType.Name: quantity}
		if errLog := recordTransfer(tx, models.TransferModeQuantity, filial, quantity, byType); errLog != nil {
			return errLog
		}
		result = TransferResult{Transferred: quantity, ToFilial: filial.Name, ByType: byType}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &result, nil
}

// ByBarcode moves an explicit list of cards to a filial. Every barcode
// must resolve to an unused depot card; otherwise the whole batch is
// rejected with a ConflictError naming the failing barcodes and zero
// cards move.
func (s *Transfers) ByBarcode(ctx context.Context, toFilialID uint64, barcodes []string) (*TransferResult, error) {
	if len(barcodes) == 0 {
		return nil, &ValidationError{Field: "barcodes", Reason: "cannot be empty"}
	}
	seen := make(map[string]struct{}, len(barcodes))
	normalized := make([]string, 0, len(barcodes))
	for _, raw := range barcodes {
		barcode := NormalizeBarcode(raw)
		if errValidate := ValidateBarcode(barcode); errValidate != nil {
			return nil, errValidate
		}
		if _, dup := seen[barcode]; dup {
			return nil, &ConflictError{Reason: "duplicate barcode in request", Barcodes: []string{barcode}}
		}
		seen[barcode] = struct{}{}
		normalized = append(normalized, barcode)
	}

	var result TransferResult
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		filial, errFilial := findFilial(tx, toFilialID)
		if errFilial != nil {
			return errFilial
		}

		var cards []models.Card
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("barcode IN ?", normalized).
			Find(&cards).Error; errFind != nil {
			return fmt.Errorf("load cards: %w", errFind)
		}

		found := make(map[string]*models.Card, len(cards))
		for i := range cards {
			found[cards[i].Barcode] = &cards[i]
		}

		var failing []string
		for _, barcode := range normalized {
			card, ok := found[barcode]
			switch {
			case !ok:
				failing = append(failing, barcode)
			case card.IsUsed:
				failing = append(failing, barcode)
			case card.LocationFilialID != nil:
				failing = append(failing, barcode)
			}
		}
		if len(failing) > 0 {
			sort.Strings(failing)
			return &ConflictError{Reason: "barcodes not available at the depot", Barcodes: failing}
		}

		ids := make([]uint64, 0, len(cards))
		typeIDs := make(map[uint64]int, 4)
		for i := range cards {
			ids = append(ids, cards[i].ID)
			typeIDs[cards[i].TabraTypeID]++
		}
		if errMove := relocateDepotCards(tx, ids, toFilialID); errMove != nil {
			return errMove
		}

		byType, errNames := typeNameCounts(tx, typeIDs)
		if errNames != nil {
			return errNames
		}
		if errLog := recordTransfer(tx, models.TransferModeBarcode, filial, len(ids), byType); errLog != nil {
			return errLog
		}
		result = TransferResult{Transferred: len(ids), ToFilial: filial.Name, ByType: byType}
		return nil
	})
	if errTx != nil {
		return nil, errTx
	}
	return &result, nil
}

// Recent returns the latest transfer audit entries, newest first.
func (s *Transfers) Recent(ctx context.Context, limit int) ([]models.TransferLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.TransferLog
	if errFind := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error; errFind != nil {
		return nil, fmt.Errorf("list transfers: %w", errFind)
	}
	return logs, nil
}

// findFilial loads a filial inside a transaction.
func findFilial(tx *gorm.DB, filialID uint64) (*models.Filial, error) {
	var filial models.Filial
	if errFind := tx.First(&filial, filialID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "filial", Key: fmt.Sprintf("%d", filialID)}
		}
		return nil, fmt.Errorf("get filial: %w", errFind)
	}
	return &filial, nil
}

// typeNameCounts resolves type IDs into a name-keyed count map.
func typeNameCounts(tx *gorm.DB, counts map[uint64]int) (map[string]int, error) {
	ids := make([]uint64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	var types []models.TabraType
	if errFind := tx.Where("id IN ?", ids).Find(&types).Error; errFind != nil {
		return nil, fmt.Errorf("load type names: %w", errFind)
	}
	out := make(map[string]int, len(types))
	for _, t := range types {
		out[t.Name] = counts[t.ID]
	}
	return out, nil
}

// recordTransfer appends one audit log row for a committed movement.
func recordTransfer(tx *gorm.DB, mode string, filial *models.Filial, count int, byType map[string]int) error {
	breakdown, errMarshal := json.Marshal(byType)
	if errMarshal != nil {
		return fmt.Errorf("marshal breakdown: %w", errMarshal)
	}
	entry := models.TransferLog{
		Mode:       mode,
		FilialID:   filial.ID,
		FilialName: filial.Name,
		CardCount:  count,
		Breakdown:  datatypes.JSON(breakdown),
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return fmt.Errorf("record transfer: %w", errCreate)
	}
	return nil
}
