package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// ReportHandler serves the admin reporting views.
type ReportHandler struct {
	reports *tabra.Reports
}

// NewReportHandler wires a report handler with its database dependency.
func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{reports: tabra.NewReports(db)}
}

// CentralStock returns per-type unused counts at the depot.
func (h *ReportHandler) CentralStock(c *gin.Context) {
	items, errStock := h.reports.CentralStock(c.Request.Context())
	if errStock != nil {
		relayhttp.WriteError(c, errStock)
		return
	}
	c.JSON(http.StatusOK, formatStock(items))
}

// History returns redeemed cards across all filials, newest first.
func (h *ReportHandler) History(c *gin.Context) {
	cards, errList := h.reports.History(c.Request.Context(), nil, parseLimitQuery(c))
	if errList != nil {
		relayhttp.WriteError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(cards))
	for i := range cards {
		out = append(out, formatCard(&cards[i], nil))
	}
	c.JSON(http.StatusOK, out)
}

// Stats returns redemption aggregates grouped by filial and by type.
func (h *ReportHandler) Stats(c *gin.Context) {
	stats, errStats := h.reports.UsageStats(c.Request.Context())
	if errStats != nil {
		relayhttp.WriteError(c, errStats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
