package services

import (
	"errors"
	"fmt"

	"kaienv/internal/models"

	"gorm.io/gorm"
)

type GroupService struct {
	db *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

type CreateGroupData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

type UpdateGroupData struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (s *GroupService) ListGroups() ([]models.VMGroup, error) {
	var groups []models.VMGroup
	if err := s.db.Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (s *GroupService) GetGroup(id uint) (*models.VMGroup, error) {
	var group models.VMGroup
	if err := s.db.First(&group, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: group %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &group, nil
}

func (s *GroupService) CreateGroup(actorID string, data CreateGroupData) (*models.VMGroup, error) {
	if data.Name == "" {
		return nil, fmt.Errorf("%w: group name is required", ErrValidation)
	}

	var count int64
	if err := s.db.Model(&models.VMGroup{}).Where("name = ?", data.Name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: group %q already exists", ErrConflict, data.Name)
	}

	group := models.VMGroup{
		Name:        data.Name,
		Description: data.Description,
		Color:       data.Color,
		CreatedBy:   actorID,
	}
	if err := s.db.Create(&group).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupService) UpdateGroup(id uint, data UpdateGroupData) (*models.VMGroup, error) {
	group, err := s.GetGroup(id)
	if err != nil {
		return nil, err
	}

	if data.Name != nil {
		if *data.Name == "" {
			return nil, fmt.Errorf("%w: group name cannot be empty", ErrValidation)
		}
		var count int64
		if err := s.db.Model(&models.VMGroup{}).
			Where("name = ? AND id <> ?", *data.Name, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, fmt.Errorf("%w: group %q already exists", ErrConflict, *data.Name)
		}
		group.Name = *data.Name
	}
	if data.Description != nil {
		group.Description = *data.Description
	}
	if data.Color != nil {
		group.Color = *data.Color
	}

	if err := s.db.Save(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// DeleteGroup removes a group. Member VMs survive with their group
// reference cleared first, so a failed delete never strands them.
func (s *GroupService) DeleteGroup(id uint) error {
	if _, err := s.GetGroup(id); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.VM{}).Where("group_id = ?", id).
			Update("group_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.VMGroup{}, id).Error
	})
}

// MoveVMsToGroup reassigns the given VMs in one batched update. Either
// every listed VM moves or none does; a nil group ungroups them.
func (s *GroupService) MoveVMsToGroup(vmIDs []uint, groupID *uint) error {
	if len(vmIDs) == 0 {
		return fmt.Errorf("%w: no vms given", ErrValidation)
	}
	if groupID != nil {
		if _, err := s.GetGroup(*groupID); err != nil {
			return err
		}
	}

	// Duplicate ids name the same VM and must not fail the batch.
	seen := make(map[uint]struct{}, len(vmIDs))
	ids := make([]uint, 0, len(vmIDs))
	for _, id := range vmIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.VM{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
			return err
		}
		if count != int64(len(ids)) {
			return fmt.Errorf("%w: %d of %d vms exist", ErrNotFound, count, len(ids))
		}
		return tx.Model(&models.VM{}).Where("id IN ?", ids).
			Update("group_id", groupID).Error
	})
}
