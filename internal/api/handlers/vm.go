package handlers

import (
	"fmt"
	"strconv"

	"kaienv/internal/models"
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type VMHandler struct {
	vms   *services.VMService
	audit *services.AuditService
}

func NewVMHandler(vms *services.VMService, audit *services.AuditService) *VMHandler {
	return &VMHandler{vms: vms, audit: audit}
}

type CreateVMRequest struct {
	Hostname      string                  `json:"hostname" binding:"required"`
	IPAddress     string                  `json:"ip_address" binding:"required"`
	AdminUser     string                  `json:"admin_user" binding:"required"`
	AdminPassword string                  `json:"admin_password" binding:"required"`
	OS            string                  `json:"os"`
	OSVersion     string                  `json:"os_version"`
	DisplayName   string                  `json:"display_name"`
	GroupID       *uint                   `json:"group_id"`
	Services      []services.ServiceInput `json:"services"`
}

// List returns all VMs with their services.
func (h *VMHandler) List(c *gin.Context) {
	vms, err := h.vms.ListVMs()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"vms": vms, "count": len(vms)})
}

// Get returns one VM by id.
func (h *VMHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid VM ID"})
		return
	}

	vm, err := h.vms.GetVM(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"vm": vm})
}

// Create registers a VM with its service attachments.
func (h *VMHandler) Create(c *gin.Context) {
	var req CreateVMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	vm, err := h.vms.CreateVM(c.GetString("account_id"), services.CreateVMData{
		Hostname:      req.Hostname,
		IPAddress:     req.IPAddress,
		AdminUser:     req.AdminUser,
		AdminPassword: req.AdminPassword,
		OS:            req.OS,
		OSVersion:     req.OSVersion,
		DisplayName:   req.DisplayName,
		GroupID:       req.GroupID,
		Services:      req.Services,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "create", vm.ID)
	c.JSON(201, gin.H{"vm": vm})
}

// Update applies a partial update; absent fields are untouched.
func (h *VMHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid VM ID"})
		return
	}

	var req services.UpdateVMData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	vm, err := h.vms.UpdateVM(id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "update", vm.ID)
	c.JSON(200, gin.H{"vm": vm})
}

// Delete removes a VM and its services.
func (h *VMHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid VM ID"})
		return
	}

	if err := h.vms.DeleteVM(id); err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "delete", id)
	c.JSON(200, gin.H{"message": "VM deleted"})
}

func (h *VMHandler) logAudit(c *gin.Context, action string, vmID uint) {
	h.audit.Record(models.AuditLog{
		AccountID:  c.GetString("account_id"),
		Action:     action,
		Resource:   "vm",
		ResourceID: fmt.Sprintf("%d", vmID),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}
