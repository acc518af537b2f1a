package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tabra-pos/tabra-backend/internal/config"
	"github.com/tabra-pos/tabra-backend/internal/security"
)

// AuthHandler handles admin authentication.
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

// adminLoginRequest defines the request body for admin login.
type adminLoginRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password and issues an admin JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body adminLoginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	password := strings.TrimSpace(body.Password)
	if password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password is required"})
		return
	}

	if !security.CheckPassword(h.cfg.Auth.AdminPasswordHash, password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.GenerateAdminToken(h.cfg.Auth.JWTSecret, h.cfg.Auth.AdminTokenTTL.Std())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
