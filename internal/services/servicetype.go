package services

import (
	"kaienv/internal/models"

	"gorm.io/gorm"
)

type ServiceTypeService struct {
	db *gorm.DB
}

func NewServiceTypeService(db *gorm.DB) *ServiceTypeService {
	return &ServiceTypeService{db: db}
}

// ListServiceTypes returns the service type catalog, alphabetically.
func (s *ServiceTypeService) ListServiceTypes() ([]models.ServiceType, error) {
	var types []models.ServiceType
	if err := s.db.Order("name").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}
