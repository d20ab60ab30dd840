package services

import (
	"kaienv/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type AuditService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAuditService(db *gorm.DB, log *zap.Logger) *AuditService {
	return &AuditService{db: db, log: log}
}

// Record writes an audit entry. Auditing never blocks the operation it
// describes; write failures are logged and swallowed.
func (s *AuditService) Record(entry models.AuditLog) {
	if err := s.db.Create(&entry).Error; err != nil {
		s.log.Warn("failed to write audit entry",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}

// List returns the newest entries first, capped at limit (default 100).
func (s *AuditService) List(limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var entries []models.AuditLog
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
