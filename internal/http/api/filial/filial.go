// Package filial registers the branch self-service API: login, stock
// overview, redemption history, and card redemption.
package filial

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tabra-pos/tabra-backend/internal/config"
	"github.com/tabra-pos/tabra-backend/internal/http/api/filial/handlers"
	"github.com/tabra-pos/tabra-backend/internal/security"
)

// RegisterFilialRoutes mounts the filial API under /api/tabra.
func RegisterFilialRoutes(r *gin.Engine, db *gorm.DB, cfg *config.Config) {
	if r == nil || db == nil {
		return
	}

	group := r.Group("/api/tabra")

	authHandler := handlers.NewAuthHandler(db, cfg)
	group.POST("/auth/filial-login", authHandler.Login)

	authed := group.Group("/filial")
	authed.Use(filialAuthMiddleware(cfg.Auth.JWTSecret))

	selfHandler := handlers.NewSelfHandler(db)
	authed.GET("/me", selfHandler.Me)
	authed.GET("/history", selfHandler.History)
	authed.POST("/use", selfHandler.Use)
}

// filialAuthMiddleware validates filial JWTs and loads the filial ID
// into context.
func filialAuthMiddleware(secret string) gin.HandlerFunc {
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

		claims, errJWT := security.ParseFilialToken(secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set("filialID", claims.FilialID)
		c.Next()
	}
}
