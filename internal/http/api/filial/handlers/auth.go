package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tabra-pos/tabra-backend/internal/config"
	relayhttp "github.com/tabra-pos/tabra-backend/internal/http"
	"github.com/tabra-pos/tabra-backend/internal/security"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

// AuthHandler handles filial authentication.
type AuthHandler struct {
	filials *tabra.Filials
	cfg     *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{filials: tabra.NewFilials(db), cfg: cfg}
}

// loginRequest defines the request body for filial login.
type loginRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

// Login authenticates a filial by code and password and issues a JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	filial, errAuth := h.filials.Authenticate(c.Request.Context(), body.Code, body.Password)
	if errAuth != nil {
		relayhttp.WriteError(c, errAuth)
		return
	}

	token, errToken := security.GenerateFilialToken(
		h.cfg.Auth.JWTSecret, filial.ID, filial.Code, filial.Name, h.cfg.Auth.TokenTTL.Std())
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"filial": gin.H{
			"id":   filial.ID,
			"name": filial.Name,
			"code": filial.Code,
		},
	})
}
