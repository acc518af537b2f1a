package tabra

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
)

// defaultHistoryLimit bounds history queries when no limit is given.
const defaultHistoryLimit = 200

// Reports derives read-only views over the ledger. Every figure is
// computed at request time from card rows; there are no running totals
// to drift out of sync.
type Reports struct {
	db *gorm.DB
}

// NewReports constructs a Reports service.
func NewReports(db *gorm.DB) *Reports {
	return &Reports{db: db}
}

// StockItem is one type's unused-card count at a location.
type StockItem struct {
	Type     models.TabraType
	Quantity int64
}

// CentralStock returns per-type unused counts at the depot. Types with
// zero depot stock are included so the view always lists the full
// catalog.
func (s *Reports) CentralStock(ctx context.Context) ([]StockItem, error) {
	return s.stockAt(ctx, Depot())
}

// FilialStock returns per-type unused counts at one filial.
func (s *Reports) FilialStock(ctx context.Context, filialID uint64) ([]StockItem, error) {
	if _, errFilial := NewFilials(s.db).Get(ctx, filialID); errFilial != nil {
		return nil, errFilial
	}
	return s.stockAt(ctx, AtFilial(filialID))
}

func (s *Reports) stockAt(ctx context.Context, loc Location) ([]StockItem, error) {
	var types []models.TabraType
	if errFind := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&types).Error; errFind != nil {
		return nil, fmt.Errorf("list types: %w", errFind)
	}

	q := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("tabra_type_id, COUNT(*) AS count").
		Where("is_used = ?", false).
		Group("tabra_type_id")
	if filialID, ok := loc.FilialID(); ok {
		q = q.Where("location_filial_id = ?", filialID)
	} else {
		q = q.Where("location_filial_id IS NULL")
	}

	type countRow struct {
		TabraTypeID uint64
		Count       int64
	}
	var counts []countRow
	if errScan := q.Scan(&counts).Error; errScan != nil {
		return nil, fmt.Errorf("count stock: %w", errScan)
	}
	byType := make(map[uint64]int64, len(counts))
	for _, row := range counts {
		byType[row.TabraTypeID] = row.Count
	}

	out := make([]StockItem, 0, len(types))
	for _, t := range types {
		out = append(out, StockItem{Type: t, Quantity: byType[t.ID]})
	}
	return out, nil
}

// History returns redeemed cards, most recent first. A filialID scopes
// the view to cards redeemed at that filial; limit <= 0 applies the
// default bound.
func (s *Reports) History(ctx context.Context, filialID *uint64, limit int) ([]models.Card, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultHistoryLimit
	}

	q := s.db.WithContext(ctx).
		Preload("TabraType").
		Where("is_used = ?", true)
	if filialID != nil {
		q = q.Where("location_filial_id = ?", *filialID)
	}

	var cards []models.Card
	if errFind := q.Order("used_at DESC, id DESC").Limit(limit).Find(&cards).Error; errFind != nil {
		return nil, fmt.Errorf("list history: %w", errFind)
	}
	return cards, nil
}

// FilialUsage aggregates one filial's redemptions in the stats view.
type FilialUsage struct {
	Count int64            `json:"count"` // Cards redeemed under this filial name.
	Cards map[string]int64 `json:"cards"` // Per-type counts, keyed by type name.
}

// TypeUsage aggregates one type's redemptions in the stats view.
type TypeUsage struct {
	Count int64  `json:"count"` // Cards redeemed of this type.
	Price string `json:"price"` // Type price text, verbatim.
	Total string `json:"total"` // Price multiplied by count, when the price parses.
}

// Stats is the usage-aggregate view over all redeemed cards.
type Stats struct {
	ByFilial map[string]*FilialUsage `json:"byFilial"` // Keyed by recorded filial name.
	ByCard   map[string]*TypeUsage   `json:"byCard"`   // Keyed by type name.
}

// UsageStats groups redeemed cards by the filial name recorded at
// redemption time and by card type. Grouping by the recorded name
// keeps redemptions attributable after a filial is renamed or deleted.
func (s *Reports) UsageStats(ctx context.Context) (*Stats, error) {
	type usageRow struct {
		FilialName string
		TypeName   string
		Price      string
		Count      int64
	}
	var rows []usageRow
	if errScan := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("COALESCE(cards.filial_name, '') AS filial_name, tabra_types.name AS type_name, tabra_types.price AS price, COUNT(*) AS count").
		Joins("JOIN tabra_types ON tabra_types.id = cards.tabra_type_id").
		Where("cards.is_used = ?", true).
		Group("cards.filial_name, tabra_types.name, tabra_types.price").
		Scan(&rows).Error; errScan != nil {
		return nil, fmt.Errorf("aggregate usage: %w", errScan)
	}

	stats := &Stats{
		ByFilial: map[string]*FilialUsage{},
		ByCard:   map[string]*TypeUsage{},
	}
	for _, row := range rows {
		filial := stats.ByFilial[row.FilialName]
		if filial == nil {
			filial = &FilialUsage{Cards: map[string]int64{}}
			stats.ByFilial[row.FilialName] = filial
		}
		filial.Count += row.Count
		filial.Cards[row.TypeName] += row.Count

		card := stats.ByCard[row.TypeName]
		if card == nil {
			card = &TypeUsage{Price: row.Price}
			stats.ByCard[row.TypeName] = card
		}
		card.Count += row.Count
	}
	for _, usage := range stats.ByCard {
		if price, errPrice := decimal.NewFromString(usage.Price); errPrice == nil {
			usage.Total = price.Mul(decimal.NewFromInt(usage.Count)).String()
		}
	}
	return stats, nil
}

// FilialOverview is the self-service summary for a logged-in filial.
type FilialOverview struct {
	Filial     models.Filial
	TotalStock int64
	TotalUsed  int64
	ByCard     map[string]*TypeUsage
	Stock      []StockItem
}

// Overview assembles a filial's stock and redemption summary.
func (s *Reports) Overview(ctx context.Context, filialID uint64) (*FilialOverview, error) {
	filial, errFilial := NewFilials(s.db).Get(ctx, filialID)
	if errFilial != nil {
		return nil, errFilial
	}

	stock, errStock := s.stockAt(ctx, AtFilial(filialID))
	if errStock != nil {
		return nil, errStock
	}
	var totalStock int64
	for _, item := range stock {
		totalStock += item.Quantity
	}

	type usageRow struct {
		TypeName string
		Price    string
		Count    int64
	}
	var rows []usageRow
	if errScan := s.db.WithContext(ctx).Model(&models.Card{}).
		Select("tabra_types.name AS type_name, tabra_types.price AS price, COUNT(*) AS count").
		Joins("JOIN tabra_types ON tabra_types.id = cards.tabra_type_id").
		Where("cards.is_used = ? AND cards.location_filial_id = ?", true, filialID).
		Group("tabra_types.name, tabra_types.price").
		Scan(&rows).Error; errScan != nil {
		return nil, fmt.Errorf("aggregate filial usage: %w", errScan)
	}

	byCard := make(map[string]*TypeUsage, len(rows))
	var totalUsed int64
	for _, row := range rows {
		usage := &TypeUsage{Count: row.Count, Price: row.Price}
		if price, errPrice := decimal.NewFromString(row.Price); errPrice == nil {
			usage.Total = price.Mul(decimal.NewFromInt(row.Count)).String()
		}
		byCard[row.TypeName] = usage
		totalUsed += row.Count
	}

	return &FilialOverview{
		Filial:     *filial,
		TotalStock: totalStock,
		TotalUsed:  totalUsed,
		ByCard:     byCard,
		Stock:      stock,
	}, nil
}
