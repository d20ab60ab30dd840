package handlers

import (
	"errors"

	"kaienv/internal/gateway"
	"kaienv/internal/models"
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	gw    gateway.Gateway
	audit *services.AuditService
}

func NewAuthHandler(gw gateway.Gateway, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{gw: gw, audit: audit}
}

type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Signup registers a password account. New accounts always start as
// plain users.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	account, err := h.gw.SignUp(req.Email, req.Password, gateway.Metadata{Name: req.Name})
	if err != nil {
		if errors.Is(err, gateway.ErrAccountExists) {
			c.JSON(409, gin.H{"error": "Account already exists"})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to create account"})
		return
	}

	c.JSON(201, gin.H{"account": account})
}

// Login exchanges credentials for a token bundle.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	bundle, account, err := h.gw.SignInWithPassword(req.Email, req.Password)
	if err != nil {
		c.JSON(401, gin.H{"error": "Invalid email or password"})
		return
	}

	h.audit.Record(models.AuditLog{
		AccountID: account.ID,
		Action:    "login",
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})

	c.JSON(200, gin.H{
		"access_token":  bundle.AccessToken,
		"refresh_token": bundle.RefreshToken,
		"expires_at":    bundle.ExpiresAt,
		"account":       account,
	})
}

// Logout revokes the presented token. Succeeds even when the token is
// already gone.
func (h *AuthHandler) Logout(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	token := ""
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token != "" {
		if err := h.gw.RevokeToken(token); err != nil {
			c.JSON(500, gin.H{"error": "Failed to revoke token"})
			return
		}
	}

	if accountID, ok := c.Get("account_id"); ok {
		h.audit.Record(models.AuditLog{
			AccountID: accountID.(string),
			Action:    "logout",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}

	c.JSON(200, gin.H{"message": "Logged out"})
}

// Me returns the authenticated caller's account and profile.
func (h *AuthHandler) Me(c *gin.Context) {
	accountID := c.GetString("account_id")

	account, ok := c.Get("account")
	if !ok {
		c.JSON(401, gin.H{"error": "Not authenticated"})
		return
	}

	resp := gin.H{"account": account}
	if profile, err := h.gw.GetProfile(accountID); err == nil {
		resp["profile"] = profile
	}
	c.JSON(200, resp)
}
