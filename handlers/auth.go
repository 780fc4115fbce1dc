package handlers

import (
	"net/http"
	"strings"

	"oplugy/middleware"
	"oplugy/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuthHandler serves the demo login. It holds one hardcoded credential pair
// and stores nothing.
type AuthHandler struct {
	Email        string
	passwordHash string
	Logger       *zap.Logger
}

func NewAuthHandler(email, password string, logger *zap.Logger) (*AuthHandler, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &AuthHandler{Email: email, passwordHash: hash, Logger: logger}, nil
}

// LoginHandler handles POST /api/auth/login.
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	logger := getLogger(c)

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	if !strings.EqualFold(strings.TrimSpace(req.Email), h.Email) || !utils.CheckPassword(h.passwordHash, req.Password) {
		logger.Info("Login rejected", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := utils.GenerateDemoToken("demo-user", h.Email)
	if err != nil {
		logger.Error("Failed to issue demo token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  gin.H{"id": "demo-user", "email": h.Email},
	})
}

// MeHandler handles GET /api/auth/me behind DemoAuthMiddleware.
func (h *AuthHandler) MeHandler(c *gin.Context) {
	email := middleware.DemoEmail(c)
	if email == "" {
		email = h.Email
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": "demo-user", "email": email}})
}

// SignupHandler handles POST /api/auth/signup. It always succeeds.
func (h *AuthHandler) SignupHandler(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user": gin.H{
			"id":       uuid.New().String(),
			"email":    req.Email,
			"fullName": req.FullName,
		},
	})
}
