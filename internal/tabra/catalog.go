package tabra

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	dbutil "github.com/tabra-pos/tabra-backend/internal/db"
	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
)

// MaxBatchCount caps how many cards one type creation may issue.
const MaxBatchCount = 1000

// Catalog manages card types and batch issuance.
type Catalog struct {
	db *gorm.DB
}

// NewCatalog constructs a Catalog backed by the given database.
func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// CreateTypeParams holds inputs for type creation.
type CreateTypeParams struct {
	Name           string // Display name.
	FiscalCodeName string // Unique fiscal registration code.
	Price          string // Decimal price text, stored verbatim.
	Count          int    // Cards to issue, 1..MaxBatchCount.
}

// CreateType creates a card type and issues Count cards at the depot,
// each with a freshly generated unique 13-digit barcode. The whole
// batch commits or nothing does.
func (s *Catalog) CreateType(ctx context.Context, params CreateTypeParams) (*models.TabraType, []string, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, nil, &ValidationError{Field: "name", Reason: "cannot be blank"}
	}
	fiscal := strings.TrimSpace(params.FiscalCodeName)
	if fiscal == "" {
		return nil, nil, &ValidationError{Field: "fiscalCodeName", Reason: "cannot be blank"}
	}
	price := strings.TrimSpace(params.Price)
	if price == "" {
		return nil, nil, &ValidationError{Field: "price", Reason: "cannot be blank"}
	}
	if _, errPrice := decimal.NewFromString(price); errPrice != nil {
		return nil, nil, &ValidationError{Field: "price", Reason: "must be a decimal number"}
	}
	if params.Count < 1 || params.Count > MaxBatchCount {
		return nil, nil, &ValidationError{Field: "count", Reason: fmt.Sprintf("must be between 1 and %d", MaxBatchCount)}
	}

	var created models.TabraType
	barcodes := make([]string, 0, params.Count)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.TabraType
		errCheck := tx.Where("fiscal_code_name = ?", fiscal).First(&existing).Error
		if errCheck == nil {
			return &ConflictError{Reason: fmt.Sprintf("fiscal code %s already exists", fiscal)}
		}
		if !errors.Is(errCheck, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check fiscal code: %w", errCheck)
		}

		created = models.TabraType{Name: name, FiscalCodeName: fiscal, Price: price}
		if errCreate := tx.Create(&created).Error; errCreate != nil {
			return fmt.Errorf("create type: %w", errCreate)
		}

		for i := 0; i < params.Count; i++ {
			barcode, errGen := issueBarcode(tx)
			if errGen != nil {
				return errGen
			}
			card := models.Card{TabraTypeID: created.ID, Barcode: barcode}
			if errCreate := tx.Create(&card).Error; errCreate != nil {
				return fmt.Errorf("create card: %w", errCreate)
			}
			barcodes = append(barcodes, barcode)
		}
		return nil
	})
	if errTx != nil {
		return nil, nil, errTx
	}
	return &created, barcodes, nil
}

// issueBarcode generates a barcode not yet present in the ledger,
// retrying on collision within a bounded budget.
func issueBarcode(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < barcodeAttempts; attempt++ {
		candidate, errGen := randomBarcode()
		if errGen != nil {
			return "", errGen
		}
		taken, errCheck := barcodeTaken(tx, candidate)
		if errCheck != nil {
			return "", errCheck
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", &ExhaustedError{What: "barcode", Attempts: barcodeAttempts}
}

// TypeWithCount pairs a type with its total issued-card count.
// The count is informational; stock views derive their own figures.
type TypeWithCount struct {
	Type      models.TabraType
	CardCount int64
}

// ListTypes returns all types, newest first, with issued-card counts.
// An optional name filter matches case-insensitively.
func (s *Catalog) ListTypes(ctx context.Context, nameFilter string) ([]TypeWithCount, error) {
	q := s.db.WithContext(ctx).Model(&models.TabraType{})
	if trimmed := strings.TrimSpace(nameFilter); trimmed != "" {
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(s.db, "name"), dbutil.NormalizeLikePattern(s.db, "%"+trimmed+"%"))
	}

	var types []models.TabraType
	if errFind := q.Order("created_at DESC, id DESC").Find(&types).Error; errFind != nil {
		return nil, fmt.Errorf("list types: %w", errFind)
	}

	type countRow struct {
		TabraTypeID uint64
		Count       int64
	}
	var counts []countRow
	if errCount := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("tabra_type_id, COUNT(*) AS count").
		Group("tabra_type_id").
		Scan(&counts).Error; errCount != nil {
		return nil, fmt.Errorf("count cards: %w", errCount)
	}
	byType := make(map[uint64]int64, len(counts))
	for _, row := range counts {
		byType[row.TabraTypeID] = row.Count
	}

	out := make([]TypeWithCount, 0, len(types))
	for _, t := range types {
		out = append(out, TypeWithCount{Type: t, CardCount: byType[t.ID]})
	}
	return out, nil
}

// GetType loads a single type by ID.
func (s *Catalog) GetType(ctx context.Context, typeID uint64) (*models.TabraType, error) {
	var t models.TabraType
	if errFind := s.db.WithContext(ctx).First(&t, typeID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "type", Key: fmt.Sprintf("%d", typeID)}
		}
		return nil, fmt.Errorf("get type: %w", errFind)
	}
	return &t, nil
}

// CardRow is a card joined with the name of its current filial.
type CardRow struct {
	models.Card
	CurrentFilialName *string // Present when the card sits at a filial.
}

// TypeCards lists the cards of a type, optionally filtered by used
// state, newest first, with the current filial name joined in.
func (s *Catalog) TypeCards(ctx context.Context, typeID uint64, used *bool) ([]CardRow, error) {
	if _, errType := s.GetType(ctx, typeID); errType != nil {
		return nil, errType
	}

	q := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("cards.*, filials.name AS current_filial_name").
		Joins("LEFT JOIN filials ON filials.id = cards.location_filial_id").
		Where("cards.tabra_type_id = ?", typeID)
	if used != nil {
		q = q.Where("cards.is_used = ?", *used)
	}

	var rows []CardRow
	if errFind := q.Order("cards.created_at DESC, cards.id DESC").Scan(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("list cards: %w", errFind)
	}
	return rows, nil
}

// TypeBarcodes returns every barcode issued under a type, oldest first.
func (s *Catalog) TypeBarcodes(ctx context.Context, typeID uint64) ([]string, error) {
	if _, errType := s.GetType(ctx, typeID); errType != nil {
		return nil, errType
	}
	var barcodes []string
	if errPluck := s.db.WithContext(ctx).Model(&models.Card{}).
		Where("tabra_type_id = ?", typeID).
		Order("id ASC").
		Pluck("barcode", &barcodes).Error; errPluck != nil {
		return nil, fmt.Errorf("list barcodes: %w", errPluck)
	}
	return barcodes, nil
}

// DeleteType removes a type together with its unused cards. Types with
// used cards are redemption history and cannot be deleted; the whole
// operation fails with a ConflictError in that case.
func (s *Catalog) DeleteType(ctx context.Context, typeID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.TabraType
		if errFind := tx.First(&t, typeID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "type", Key: fmt.Sprintf("%d", typeID)}
			}
			return fmt.Errorf("get type: %w", errFind)
		}

		var usedCount int64
		if errCount := tx.Model(&models.Card{}).
			Where("tabra_type_id = ? AND is_used = ?", typeID, true).
			Count(&usedCount).Error; errCount != nil {
			return fmt.Errorf("count used cards: %w", errCount)
		}
		if usedCount > 0 {
			return &ConflictError{Reason: fmt.Sprintf("type %s has %d redeemed cards, history cannot be deleted", t.Name, usedCount)}
		}

		if errDelete := tx.Where("tabra_type_id = ? AND is_used = ?", typeID, false).
			Delete(&models.Card{}).Error; errDelete != nil {
			return fmt.Errorf("delete cards: %w", errDelete)
		}
		if errDelete := tx.Delete(&models.TabraType{}, typeID).Error; errDelete != nil {
			return fmt.Errorf("delete type: %w", errDelete)
		}
		return nil
	})
}

// RenameType updates the display name of a type.
func (s *Catalog) RenameType(ctx context.Context, typeID uint64, name string) (*models.TabraType, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, &ValidationError{Field: "name", Reason: "cannot be blank"}
	}
	t, errGet := s.GetType(ctx, typeID)
	if errGet != nil {
		return nil, errGet
	}
	if errUpdate := s.db.WithContext(ctx).Model(t).Update("name", trimmed).Error; errUpdate != nil {
		return nil, fmt.Errorf("rename type: %w", errUpdate)
	}
	t.Name = trimmed
	return t, nil
}

// DeleteCard removes one unused card. Used cards are permanent history.
func (s *Catalog) DeleteCard(ctx context.Context, cardID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, errLock := lockCardByID(tx, cardID)
		if errLock != nil {
			return errLock
		}
		if card.IsUsed {
			return &ConflictError{Reason: "card already used, redemption history cannot be deleted", Barcodes: []string{card.Barcode}}
		}
		if errDelete := tx.Delete(&models.Card{}, cardID).Error; errDelete != nil {
			return fmt.Errorf("delete card: %w", errDelete)
		}
		return nil
	})
}
