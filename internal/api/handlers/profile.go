package handlers

import (
	"errors"

	"kaienv/internal/gateway"
	"kaienv/internal/models"
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

// ProfileHandler is the admin surface for managing dashboard users. A
// profile row doubles as the approval record for federated sign-in, so
// creating one here pre-approves an email.
type ProfileHandler struct {
	gw    gateway.Gateway
	audit *services.AuditService
}

func NewProfileHandler(gw gateway.Gateway, audit *services.AuditService) *ProfileHandler {
	return &ProfileHandler{gw: gw, audit: audit}
}

type UpsertProfileRequest struct {
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	Role      *string `json:"role"`
	AvatarURL *string `json:"avatar_url"`
	Disabled  *bool   `json:"disabled"`
}

func (h *ProfileHandler) List(c *gin.Context) {
	profiles, err := h.gw.ListProfiles()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list profiles"})
		return
	}
	c.JSON(200, gin.H{"profiles": profiles, "count": len(profiles)})
}

// Update writes the profile fields for an account id, creating the row
// when it does not exist yet.
func (h *ProfileHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if req.Role != nil && *req.Role != "admin" && *req.Role != "user" {
		c.JSON(400, gin.H{"error": "Role must be admin or user"})
		return
	}

	profile, err := h.gw.UpsertProfile(id, req.Email, gateway.ProfileFields{
		Name:      req.Name,
		Role:      req.Role,
		AvatarURL: req.AvatarURL,
		Disabled:  req.Disabled,
	})
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update profile"})
		return
	}

	h.audit.Record(models.AuditLog{
		AccountID:  c.GetString("account_id"),
		Action:     "update",
		Resource:   "profile",
		ResourceID: id,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	c.JSON(200, gin.H{"profile": profile})
}

// Delete removes a profile, revoking the user's approval. Admins cannot
// remove their own profile.
func (h *ProfileHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if id == c.GetString("account_id") {
		c.JSON(400, gin.H{"error": "Cannot delete your own profile"})
		return
	}

	if err := h.gw.DeleteProfile(id); err != nil {
		if errors.Is(err, gateway.ErrProfileNotFound) {
			c.JSON(404, gin.H{"error": "Profile not found"})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete profile"})
		return
	}

	h.audit.Record(models.AuditLog{
		AccountID:  c.GetString("account_id"),
		Action:     "delete",
		Resource:   "profile",
		ResourceID: id,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
	c.JSON(200, gin.H{"message": "Profile deleted"})
}
