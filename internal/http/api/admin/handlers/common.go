package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// parseIDParam reads a numeric :id path parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseLimitQuery reads an optional ?limit= query parameter.
func parseLimitQuery(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return 0
	}
	limit, errParse := strconv.Atoi(raw)
	if errParse != nil || limit < 0 {
		return 0
	}
	return limit
}

// formatType renders a type for JSON responses.
func formatType(t *models.TabraType) gin.H {
	return gin.H{
		"id":             t.ID,
		"name":           t.Name,
		"fiscalCodeName": t.FiscalCodeName,
		"price":          t.Price,
		"createdAt":      t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// formatTypeWithCount renders a type with its issued-card count.
func formatTypeWithCount(row tabra.TypeWithCount) gin.H {
	out := formatType(&row.Type)
	out["_count"] = gin.H{"cards": row.CardCount}
	return out
}

// formatCard renders a card for JSON responses. currentFilialName names
// the filial currently holding the card; nil means the central depot.
func formatCard(card *models.Card, currentFilialName *string) gin.H {
	out := gin.H{
		"id":                card.ID,
		"tabraTypeId":       card.TabraTypeID,
		"barcode":           card.Barcode,
		"customerFirstName": card.CustomerFirstName,
		"customerLastName":  card.CustomerLastName,
		"customerPhone":     card.CustomerPhone,
		"filial":            card.FilialName,
		"isUsed":            card.IsUsed,
		"receiptNumber":     card.ReceiptNumber,
		"createdAt":         card.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":         card.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if card.UsedAt != nil {
		out["usedAt"] = card.UsedAt.UTC().Format(time.RFC3339)
	} else {
		out["usedAt"] = nil
	}
	if card.TabraType != nil {
		out["tabraType"] = formatType(card.TabraType)
	}
	if currentFilialName != nil {
		out["currentFilial"] = gin.H{"name": *currentFilialName}
	} else {
		out["currentFilial"] = nil
	}
	return out
}

// formatStock renders per-type stock rows.
func formatStock(items []tabra.StockItem) []gin.H {
	out := make([]gin.H, 0, len(items))
	for i := range items {
		out = append(out, gin.H{
			"type":     formatType(&items[i].Type),
			"quantity": items[i].Quantity,
		})
	}
	return out
}
