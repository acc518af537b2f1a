package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// WriteError maps engine errors onto HTTP responses. Unknown errors are
// logged and reported as a generic 500 so internals never leak to
// clients.
func WriteError(c *gin.Context, err error) {
	var validationErr *tabra.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}
	var notFoundErr *tabra.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
		return
	}
	var conflictErr *tabra.ConflictError
	if errors.As(err, &conflictErr) {
		body := gin.H{"error": conflictErr.Error()}
		if len(conflictErr.Barcodes) > 0 {
			body["barcodes"] = conflictErr.Barcodes
		}
		c.JSON(http.StatusConflict, body)
		return
	}
	var stockErr *tabra.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     stockErr.Error(),
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
		return
	}
	var forbiddenErr *tabra.ForbiddenError
	if errors.As(err, &forbiddenErr) {
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error()})
		return
	}

	log.WithError(err).Error("unhandled request error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
