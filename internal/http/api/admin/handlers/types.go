package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// TypeHandler handles admin operations on card types and their cards.
type TypeHandler struct {
	catalog *tabra.Catalog
}

// NewTypeHandler wires a type handler with its database dependency.
func NewTypeHandler(db *gorm.DB) *TypeHandler {
	return &TypeHandler{catalog: tabra.NewCatalog(db)}
}

// List returns all types with issued-card counts.
func (h *TypeHandler) List(c *gin.Context) {
	rows, errList := h.catalog.ListTypes(c.Request.Context(), c.Query("name"))
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, formatTypeWithCount(row))
	}
	c.JSON(http.StatusOK, out)
}

// createTypeRequest captures the payload for type creation.
type createTypeRequest struct {
	Name           string `json:"name"`           // Display name.
	FiscalCodeName string `json:"fiscalCodeName"` // Fiscal registration code.
	Price          string `json:"price"`          // Price text, stored verbatim.
	Count          int    `json:"count"`          // Cards to issue immediately.
}

// Create registers a type and issues its initial card batch.
func (h *TypeHandler) Create(c *gin.Context) {
	var body createTypeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, barcodes, errCreate := h.catalog.CreateType(c.Request.Context(), tabra.CreateTypeParams{
		Name:           body.Name,
		FiscalCodeName: body.FiscalCodeName,
		Price:          body.Price,
		Count:          body.Count,
	})
	if errCreate != nil {
		relayhttp.WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"type":     formatType(created),
		"barcodes": barcodes,
		"count":    len(barcodes),
	})
}

// renameTypeRequest captures the payload for renaming a type.
type renameTypeRequest struct {
	Name string `json:"name"`
}

// Rename changes a type's display name.
func (h *TypeHandler) Rename(c *gin.Context) {
	typeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type id"})
		return
	}
	var body renameTypeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	renamed, errRename := h.catalog.RenameType(c.Request.Context(), typeID, body.Name)
	if errRename != nil {
		relayhttp.WriteError(c, errRename)
		return
	}
	c.JSON(http.StatusOK, formatType(renamed))
}

// Delete removes a type and its unused cards. Types with redeemed
// cards are refused so redemption history stays intact.
func (h *TypeHandler) Delete(c *gin.Context) {
	typeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type id"})
		return
	}
	if errDelete := h.catalog.DeleteType(c.Request.Context(), typeID); errDelete != nil {
		relayhttp.WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Cards lists a type's cards, optionally filtered by used state.
func (h *TypeHandler) Cards(c *gin.Context) {
	typeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type id"})
		return
	}
	var used *bool
	if raw := c.Query("used"); raw != "" {
		parsed, errParse := strconv.ParseBool(raw)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid used filter"})
			return
		}
		used = &parsed
	}

	rows, errList := h.catalog.TypeCards(c.Request.Context(), typeID, used)
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatCard(&rows[i].Card, rows[i].CurrentFilialName))
	}
	c.JSON(http.StatusOK, out)
}

// Export streams a type's barcodes as plain text, one per line, for
// printing labels.
func (h *TypeHandler) Export(c *gin.Context) {
	typeID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type id"})
		return
	}
	barcodes, errList := h.catalog.TypeBarcodes(c.Request.Context(), typeID)
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=barcodes.txt")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strings.Join(barcodes, "\n")+"\n"))
}

// DeleteCard removes a single unused card from circulation.
func (h *TypeHandler) DeleteCard(c *gin.Context) {
	cardID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid card id"})
		return
	}
	if errDelete := h.catalog.DeleteCard(c.Request.Context(), cardID); errDelete != nil {
		relayhttp.WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
