// Package admin registers the management API: catalog, transfers,
// filials, reporting, and admin-scoped redemption.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tabra-pos/tabra-backend/internal/config"
	"github.com/tabra-pos/tabra-backend/internal/http/api/admin/handlers"
	"github.com/tabra-pos/tabra-backend/internal/security"
)

// RegisterAdminRoutes mounts the admin API under /api/tabra.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/api/tabra")

	authHandler := handlers.NewAuthHandler(cfg)
	group.POST("/auth/admin-login", authHandler.Login)

	authed := group.Group("")
	authed.Use(adminAuthMiddleware(cfg.Auth.JWTSecret))

	typeHandler := handlers.NewTypeHandler(db)
	authed.GET("/types", typeHandler.List)
	authed.POST("/types", typeHandler.Create)
	authed.PATCH("/types/:id", typeHandler.Rename)
	authed.DELETE("/types/:id", typeHandler.Delete)
	authed.GET("/types/:id/cards", typeHandler.Cards)
	authed.GET("/types/:id/export", typeHandler.Export)
	authed.DELETE("/cards/:id", typeHandler.DeleteCard)

	filialHandler := handlers.NewFilialHandler(db)
	authed.GET("/filials", filialHandler.List)
	authed.POST("/filials", filialHandler.Create)
	authed.PATCH("/filials/:id", filialHandler.Update)
	authed.DELETE("/filials/:id", filialHandler.Delete)
	authed.GET("/filials/:id/stock", filialHandler.Stock)

	transferHandler := handlers.NewTransferHandler(db)
	authed.POST("/transfers", transferHandler.Create)
	authed.POST("/transfers/by-barcode", transferHandler.CreateByBarcode)
	authed.GET("/transfers", transferHandler.List)

	reportHandler := handlers.NewReportHandler(db)
	authed.GET("/stock/central", reportHandler.CentralStock)
	authed.GET("/history", reportHandler.History)
	authed.GET("/stats", reportHandler.Stats)

	redeemHandler := handlers.NewRedeemHandler(db)
	authed.POST("/use", redeemHandler.Use)
}

// adminAuthMiddleware validates admin JWTs on management routes.
func adminAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		if _, errJWT := security.ParseAdminToken(secret, token); errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}
