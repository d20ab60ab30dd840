package handlers

import (
	"strconv"

	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List returns recent audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.audit.List(limit)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list audit entries"})
		return
	}
	c.JSON(200, gin.H{"entries": entries, "count": len(entries)})
}
