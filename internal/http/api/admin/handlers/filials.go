package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/models"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// FilialHandler handles admin operations on filials.
type FilialHandler struct {
	filials *tabra.Filials
	reports *tabra.Reports
}

// NewFilialHandler wires a filial handler with its database dependency.
func NewFilialHandler(db *gorm.DB) *FilialHandler {
	return &FilialHandler{filials: tabra.NewFilials(db), reports: tabra.NewReports(db)}
}

// formatFilial renders a filial for JSON responses. The password hash
// never leaves the server.
func formatFilial(f *models.Filial) gin.H {
	return gin.H{
		"id":        f.ID,
		"name":      f.Name,
		"code":      f.Code,
		"createdAt": f.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// List returns all filials with their current stock counts.
func (h *FilialHandler) List(c *gin.Context) {
	rows, errList := h.filials.List(c.Request.Context())
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		entry := formatFilial(&rows[i].Filial)
		entry["_count"] = gin.H{"cardsInStock": rows[i].CardsInStock}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, out)
}

// createFilialRequest captures the payload for filial creation.
type createFilialRequest struct {
	Name     string `json:"name"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

// Create registers a new filial.
func (h *FilialHandler) Create(c *gin.Context) {
	var body createFilialRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	created, errCreate := h.filials.Create(c.Request.Context(), tabra.CreateFilialParams{
		Name:     body.Name,
		Code:     body.Code,
		Password: body.Password,
	})
	if errCreate != nil {
		relayhttp.WriteError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatFilial(created))
}

// updateFilialRequest captures optional filial field changes.
type updateFilialRequest struct {
	Name     *string `json:"name"`
	Code     *string `json:"code"`
	Password *string `json:"password"`
}

// Update applies field changes to a filial.
func (h *FilialHandler) Update(c *gin.Context) {
	filialID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filial id"})
		return
	}
	var body updateFilialRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	updated, errUpdate := h.filials.Update(c.Request.Context(), filialID, tabra.UpdateFilialParams{
		Name:     body.Name,
		Code:     body.Code,
		Password: body.Password,
	})
	if errUpdate != nil {
		relayhttp.WriteError(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatFilial(updated))
}

// Delete removes a filial, returning its unused stock to the depot.
func (h *FilialHandler) Delete(c *gin.Context) {
	filialID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filial id"})
		return
	}
	if errDelete := h.filials.Delete(c.Request.Context(), filialID); errDelete != nil {
		relayhttp.WriteError(c, errDelete)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Stock returns per-type unused counts at one filial.
func (h *FilialHandler) Stock(c *gin.Context) {
	filialID, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filial id"})
		return
	}
	items, errStock := h.reports.FilialStock(c.Request.Context(), filialID)
	if errStock != nil {
		relayhttp.WriteError(c, errStock)
		return
	}
	c.JSON(http.StatusOK, formatStock(items))
}
