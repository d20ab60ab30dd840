package handlers

import (
	"fmt"

	"kaienv/internal/models"
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type GroupHandler struct {
	groups *services.GroupService
	audit  *services.AuditService
}

func NewGroupHandler(groups *services.GroupService, audit *services.AuditService) *GroupHandler {
	return &GroupHandler{groups: groups, audit: audit}
}

type MoveVMsRequest struct {
	VMIDs   []uint `json:"vm_ids" binding:"required"`
	GroupID *uint  `json:"group_id"`
}

func (h *GroupHandler) List(c *gin.Context) {
	groups, err := h.groups.ListGroups()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"groups": groups, "count": len(groups)})
}

func (h *GroupHandler) Create(c *gin.Context) {
	var req services.CreateGroupData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.CreateGroup(c.GetString("account_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "create", group.ID)
	c.JSON(201, gin.H{"group": group})
}

func (h *GroupHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid group ID"})
		return
	}

	var req services.UpdateGroupData
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	group, err := h.groups.UpdateGroup(id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "update", group.ID)
	c.JSON(200, gin.H{"group": group})
}

// Delete removes a group; member VMs stay, ungrouped.
func (h *GroupHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.JSON(400, gin.H{"error": "Invalid group ID"})
		return
	}

	if err := h.groups.DeleteGroup(id); err != nil {
		writeError(c, err)
		return
	}

	h.logAudit(c, "delete", id)
	c.JSON(200, gin.H{"message": "Group deleted"})
}

// Move reassigns a batch of VMs to a group, or ungroups them when
// group_id is absent.
func (h *GroupHandler) Move(c *gin.Context) {
	var req MoveVMsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if err := h.groups.MoveVMsToGroup(req.VMIDs, req.GroupID); err != nil {
		writeError(c, err)
		return
	}

	h.audit.Record(models.AuditLog{
		AccountID: c.GetString("account_id"),
		Action:    "move",
		Resource:  "group",
		Details:   fmt.Sprintf("moved %d vms", len(req.VMIDs)),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(200, gin.H{"message": "VMs moved", "count": len(req.VMIDs)})
}

func (h *GroupHandler) logAudit(c *gin.Context, action string, groupID uint) {
	h.audit.Record(models.AuditLog{
		AccountID:  c.GetString("account_id"),
		Action:     action,
		Resource:   "group",
		ResourceID: fmt.Sprintf("%d", groupID),
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}
