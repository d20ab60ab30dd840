package handlers

import (
	"kaienv/internal/models"
	"kaienv/internal/services"
	"kaienv/internal/session"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the embedded single-operator session: the
// resolver state machine and the identity context mutators.
type SessionHandler struct {
	sess  *session.Context
	audit *services.AuditService
}

func NewSessionHandler(sess *session.Context, audit *services.AuditService) *SessionHandler {
	return &SessionHandler{sess: sess, audit: audit}
}

type SessionLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Origin   string `json:"origin"` // password, federated, fallback
}

type CallbackRequest struct {
	Fragment string `json:"fragment" binding:"required"`
}

type ProfileUpdateRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Get reports the resolver state and, when resolved, the identity.
func (h *SessionHandler) Get(c *gin.Context) {
	state, reason := h.sess.State()
	resp := gin.H{"state": state}
	if reason != "" {
		resp["reason"] = reason
	}
	if id := h.sess.Current(); id != nil {
		resp["identity"] = id
		resp["is_admin"] = id.Role == "admin"
	}
	c.JSON(200, resp)
}

// Login signs the operator in. Federated sign-in answers with the
// provider redirect instead of an identity.
func (h *SessionHandler) Login(c *gin.Context) {
	var req SessionLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	ok := h.sess.Login(c.Request.Context(), req.Email, req.Password, req.Origin)
	if !ok {
		_, reason := h.sess.State()
		if reason == "redirect" {
			c.JSON(200, gin.H{"redirect": h.sess.RedirectURL()})
			return
		}
		c.JSON(401, gin.H{"error": "Sign-in failed", "reason": reason})
		return
	}

	identity := h.sess.Current()
	if identity != nil {
		h.audit.Record(models.AuditLog{
			AccountID: identity.ID,
			Action:    "login",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
	c.JSON(200, gin.H{"identity": identity})
}

// Logout ends the operator session. Idempotent.
func (h *SessionHandler) Logout(c *gin.Context) {
	identity := h.sess.Current()
	h.sess.Logout(c.Request.Context())

	if identity != nil {
		h.audit.Record(models.AuditLog{
			AccountID: identity.ID,
			Action:    "logout",
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
	}
	c.JSON(200, gin.H{"message": "Logged out"})
}

// Callback consumes a provider redirect fragment. A sign-in the
// pre-approval gate rejects answers with the login redirect target.
func (h *SessionHandler) Callback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	h.sess.HandleCallback(c.Request.Context(), req.Fragment)

	state, reason := h.sess.State()
	if state == session.StateAnonymous && reason == "unauthorized" {
		c.JSON(403, gin.H{"redirect": "/login?reason=unauthorized"})
		return
	}
	if state != session.StateResolved {
		c.JSON(401, gin.H{"error": "Callback did not produce a session", "reason": reason})
		return
	}
	c.JSON(200, gin.H{"identity": h.sess.Current()})
}

// UpdateProfile renames the operator and optionally changes their role.
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := h.sess.UpdateProfile(c.Request.Context(), req.Name, req.Role); err != nil {
		c.JSON(500, gin.H{"error": "Failed to update profile", "details": err.Error()})
		return
	}
	c.JSON(200, gin.H{"identity": h.sess.Current()})
}
