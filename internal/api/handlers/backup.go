package handlers

import (
	"kaienv/internal/models"
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type BackupHandler struct {
	backups *services.BackupService
	audit   *services.AuditService
}

func NewBackupHandler(backups *services.BackupService, audit *services.AuditService) *BackupHandler {
	return &BackupHandler{backups: backups, audit: audit}
}

type CreateSnapshotRequest struct {
	Name string `json:"name"`
}

type SnapshotRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *BackupHandler) List(c *gin.Context) {
	backups, err := h.backups.ListSnapshots()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to list snapshots", "details": err.Error()})
		return
	}
	c.JSON(200, gin.H{"snapshots": backups, "count": len(backups)})
}

func (h *BackupHandler) Create(c *gin.Context) {
	var req CreateSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	backup, err := h.backups.CreateSnapshot(req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "create", backup.Name)
	c.JSON(201, gin.H{"snapshot": backup})
}

func (h *BackupHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.backups.DeleteSnapshot(name); err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "delete", name)
	c.JSON(200, gin.H{"message": "Snapshot deleted"})
}

// Restore extracts a snapshot over the data directory. The database
// handle keeps serving the old file until the process restarts.
func (h *BackupHandler) Restore(c *gin.Context) {
	var req SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := h.backups.RestoreSnapshot(req.Name); err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "restore", req.Name)
	c.JSON(200, gin.H{"message": "Snapshot restored, restart the server to reopen the database"})
}

func (h *BackupHandler) logAudit(c *gin.Context, action, name string) {
	h.audit.Record(models.AuditLog{
		AccountID:  c.GetString("account_id"),
		Action:     action,
		Resource:   "snapshot",
		ResourceID: name,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}
