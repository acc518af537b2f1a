package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/models"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// SelfHandler serves the authenticated filial's own views.
type SelfHandler struct {
	reports     *tabra.Reports
	redemptions *tabra.Redemptions
}

// NewSelfHandler wires a self handler with its database dependency.
func NewSelfHandler(db *gorm.DB) *SelfHandler {
	return &SelfHandler{reports: tabra.NewReports(db), redemptions: tabra.NewRedemptions(db)}
}

// getFilialID extracts the authenticated filial ID from gin context.
func getFilialID(c *gin.Context) uint64 {
	val, exists := c.Get("filialID")
	if !exists {
		return 0
	}
	id, ok := val.(uint64)
	if !ok {
		return 0
	}
	return id
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

// formatCard renders a redeemed card for history responses.
func formatCard(card *models.Card) gin.H {
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
	return out
}

// Me returns the filial's stock and redemption summary.
func (h *SelfHandler) Me(c *gin.Context) {
	filialID := getFilialID(c)
	if filialID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	overview, errOverview := h.reports.Overview(c.Request.Context(), filialID)
	if errOverview != nil {
		relayhttp.WriteError(c, errOverview)
		return
	}

	stock := make([]gin.H, 0, len(overview.Stock))
	for i := range overview.Stock {
		stock = append(stock, gin.H{
			"type":     formatType(&overview.Stock[i].Type),
			"quantity": overview.Stock[i].Quantity,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"filial": gin.H{
			"id":   overview.Filial.ID,
			"name": overview.Filial.Name,
			"code": overview.Filial.Code,
		},
		"totalStock": overview.TotalStock,
		"totalUsed":  overview.TotalUsed,
		"byCard":     overview.ByCard,
		"stock":      stock,
	})
}

// History returns the filial's own redemptions, newest first.
func (h *SelfHandler) History(c *gin.Context) {
	filialID := getFilialID(c)
	if filialID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}

	cards, errList := h.reports.History(c.Request.Context(), &filialID, limit)
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, formatCard(&cards[i]))
	}
	c.JSON(http.StatusOK, out)
}

// useCardRequest defines the request body for redemption.
type useCardRequest struct {
	Barcode           string `json:"barcode"`
	CustomerFirstName string `json:"customerFirstName"`
	CustomerLastName  string `json:"customerLastName"`
	CustomerPhone     string `json:"customerPhone"`
}

// Use redeems a card from the filial's own stock. Cards at the depot
// or at another filial are refused.
func (h *SelfHandler) Use(c *gin.Context) {
	filialID := getFilialID(c)
	if filialID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body useCardRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errRedeem := h.redemptions.Redeem(c.Request.Context(), tabra.RedeemParams{
		Barcode:           body.Barcode,
		CustomerFirstName: body.CustomerFirstName,
		CustomerLastName:  body.CustomerLastName,
		CustomerPhone:     body.CustomerPhone,
		PerformingFilial:  &filialID,
	})
	if errRedeem != nil {
		relayhttp.WriteError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receiptNumber": result.ReceiptNumber,
		"card":          formatCard(&result.Card),
	})
}
