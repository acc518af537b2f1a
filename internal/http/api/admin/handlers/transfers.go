package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// TransferHandler handles depot-to-filial card movements.
type TransferHandler struct {
	transfers *tabra.Transfers
}

// NewTransferHandler wires a transfer handler with its database dependency.
func NewTransferHandler(db *gorm.DB) *TransferHandler {
	return &TransferHandler{transfers: tabra.NewTransfers(db)}
}

// createTransferRequest captures the payload for a quantity transfer.
type createTransferRequest struct {
	ToFilialID  uint64 `json:"toFilialId"`
	TabraTypeID uint64 `json:"tabraTypeId"`
	Quantity    int    `json:"quantity"`
}

// Create moves a quantity of one type's depot cards to a filial.
func (h *TransferHandler) Create(c *gin.Context) {
	var body createTransferRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errMove := h.transfers.ByQuantity(c.Request.Context(), body.ToFilialID, body.TabraTypeID, body.Quantity)
	if errMove != nil {
		relayhttp.WriteError(c, errMove)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transferred": result.Transferred,
		"toFilial":    result.ToFilial,
		"byType":      result.ByType,
	})
}

// transferByBarcodeRequest captures the payload for an explicit batch.
type transferByBarcodeRequest struct {
	ToFilialID uint64   `json:"toFilialId"`
	Barcodes   []string `json:"barcodes"`
}

// CreateByBarcode moves an explicit list of scanned cards to a filial.
func (h *TransferHandler) CreateByBarcode(c *gin.Context) {
	var body transferByBarcodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	result, errMove := h.transfers.ByBarcode(c.Request.Context(), body.ToFilialID, body.Barcodes)
	if errMove != nil {
		relayhttp.WriteError(c, errMove)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transferred": result.Transferred,
		"toFilial":    result.ToFilial,
		"byType":      result.ByType,
	})
}

// List returns the latest transfer audit entries.
func (h *TransferHandler) List(c *gin.Context) {
	logs, errList := h.transfers.Recent(c.Request.Context(), parseLimitQuery(c))
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}

	out := make([]gin.H, 0, len(logs))
	for _, entry := range logs {
		var breakdown map[string]int
		if len(entry.Breakdown) > 0 {
			_ = json.Unmarshal(entry.Breakdown, &breakdown)
		}
		out = append(out, gin.H{
			"id":         entry.ID,
			"mode":       entry.Mode,
			"filialId":   entry.FilialID,
			"filialName": entry.FilialName,
			"cardCount":  entry.CardCount,
			"byType":     breakdown,
			"createdAt":  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, out)
}
