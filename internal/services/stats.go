package services

import (
	"time"

	"kaienv/internal/models"

	"gorm.io/gorm"
)

// StatsService summarizes the inventory for the dashboard overview.
type StatsService struct {
	db        *gorm.DB
	startedAt time.Time
}

type InventoryStats struct {
	VMs            int64            `json:"vms"`
	GroupedVMs     int64            `json:"grouped_vms"`
	UngroupedVMs   int64            `json:"ungrouped_vms"`
	Groups         int64            `json:"groups"`
	Services       int64            `json:"services"`
	ServicesByName map[string]int64 `json:"services_by_name"`
	Profiles       int64            `json:"profiles"`
	Uptime         string           `json:"uptime"`
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{db: db, startedAt: time.Now()}
}

func (s *StatsService) GetStats() (*InventoryStats, error) {
	stats := &InventoryStats{
		ServicesByName: make(map[string]int64),
	}

	if err := s.db.Model(&models.VM{}).Count(&stats.VMs).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.VM{}).Where("group_id IS NOT NULL").Count(&stats.GroupedVMs).Error; err != nil {
		return nil, err
	}
	stats.UngroupedVMs = stats.VMs - stats.GroupedVMs

	if err := s.db.Model(&models.VMGroup{}).Count(&stats.Groups).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Service{}).Count(&stats.Services).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&models.Profile{}).Count(&stats.Profiles).Error; err != nil {
		return nil, err
	}

	type nameCount struct {
		Name  string
		Count int64
	}
	var rows []nameCount
	if err := s.db.Model(&models.Service{}).
		Select("name, count(*) as count").Group("name").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ServicesByName[row.Name] = row.Count
	}

	stats.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	return stats, nil
}
