package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// RedeemHandler handles admin-scoped card redemption.
type RedeemHandler struct {
	redemptions *tabra.Redemptions
}

// NewRedeemHandler wires a redeem handler with its database dependency.
func NewRedeemHandler(db *gorm.DB) *RedeemHandler {
	return &RedeemHandler{redemptions: tabra.NewRedemptions(db)}
}

// useCardRequest defines the request body for redemption.
type useCardRequest struct {
	Barcode           string `json:"barcode"`
	CustomerFirstName string `json:"customerFirstName"`
	CustomerLastName  string `json:"customerLastName"`
	CustomerPhone     string `json:"customerPhone"`
	Filial            string `json:"filial"` // Optional label for depot redemptions.
}

// Use redeems a card from the admin console. Unlike the filial entry
// point there is no location restriction; the card's current filial
// name, or the given label, is frozen into history.
func (h *RedeemHandler) Use(c *gin.Context) {
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
		FilialLabel:       body.Filial,
	})
	if errRedeem != nil {
		relayhttp.WriteError(c, errRedeem)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"receiptNumber": result.ReceiptNumber,
		"card":          formatCard(&result.Card, nil),
	})
}
