package handlers

import (
	"kaienv/internal/services"

	"github.com/gin-gonic/gin"
)

type ServiceTypeHandler struct {
	types *services.ServiceTypeService
}

func NewServiceTypeHandler(types *services.ServiceTypeService) *ServiceTypeHandler {
	return &ServiceTypeHandler{types: types}
}

// List returns the service type catalog.
func (h *ServiceTypeHandler) List(c *gin.Context) {
	types, err := h.types.ListServiceTypes()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(200, gin.H{"service_types": types, "count": len(types)})
}
