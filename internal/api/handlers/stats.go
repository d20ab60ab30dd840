package handlers

import (
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// Get returns the inventory summary for the dashboard overview.
func (h *StatsHandler) Get(c *gin.Context) {
	stats, err := h.stats.GetStats()
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get stats", "details": err.Error()})
		return
	}
	c.JSON(200, stats)
}
