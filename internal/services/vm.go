package services

import (
	"errors"
	"fmt"

	"kaienv/internal/models"

	"gorm.io/gorm"
)

type VMService struct {
	db *gorm.DB
}

func NewVMService(db *gorm.DB) *VMService {
	return &VMService{db: db}
}

// ServiceInput is one service attachment in a create or update request.
type ServiceInput struct {
	Name       string         `json:"name"`
	Properties models.JSONMap `json:"properties"`
}

type CreateVMData struct {
	Hostname      string         `json:"hostname"`
	IPAddress     string         `json:"ip_address"`
	AdminUser     string         `json:"admin_user"`
	AdminPassword string         `json:"admin_password"`
	OS            string         `json:"os"`
	OSVersion     string         `json:"os_version"`
	DisplayName   string         `json:"display_name"`
	GroupID       *uint          `json:"group_id"`
	Services      []ServiceInput `json:"services"`
}

// UpdateVMData carries a partial update; nil fields are untouched.
// ClearGroup removes the group membership, which a nil GroupID cannot
// express. A non-nil Services slice replaces the whole set.
type UpdateVMData struct {
	Hostname      *string         `json:"hostname"`
	IPAddress     *string         `json:"ip_address"`
	AdminUser     *string         `json:"admin_user"`
	AdminPassword *string         `json:"admin_password"`
	OS            *string         `json:"os"`
	OSVersion     *string         `json:"os_version"`
	DisplayName   *string         `json:"display_name"`
	GroupID       *uint           `json:"group_id"`
	ClearGroup    bool            `json:"clear_group"`
	Services      *[]ServiceInput `json:"services"`
}

// ListVMs returns every VM with its services eagerly loaded. No
// ordering is guaranteed.
func (s *VMService) ListVMs() ([]models.VM, error) {
	var vms []models.VM
	if err := s.db.Preload("Services").Find(&vms).Error; err != nil {
		return nil, err
	}
	return vms, nil
}

func (s *VMService) GetVM(id uint) (*models.VM, error) {
	var vm models.VM
	if err := s.db.Preload("Services").First(&vm, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: vm %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &vm, nil
}

// CreateVM inserts a VM and its service attachments. The actor must be
// known; an anonymous caller is rejected outright. Service inserts run
// after the VM row commits, so a failing attachment leaves the VM
// persisted and surfaces the error.
func (s *VMService) CreateVM(actorID string, data CreateVMData) (*models.VM, error) {
	if actorID == "" {
		return nil, fmt.Errorf("%w: vm creation requires a signed-in actor", ErrNotAuthenticated)
	}
	if data.Hostname == "" || data.IPAddress == "" || data.AdminUser == "" || data.AdminPassword == "" {
		return nil, fmt.Errorf("%w: hostname, ip_address, admin_user and admin_password are required", ErrValidation)
	}

	if data.GroupID != nil {
		if err := s.groupExists(*data.GroupID); err != nil {
			return nil, err
		}
	}

	vm := models.VM{
		Hostname:      data.Hostname,
		IPAddress:     data.IPAddress,
		AdminUser:     data.AdminUser,
		AdminPassword: data.AdminPassword,
		OS:            data.OS,
		OSVersion:     data.OSVersion,
		DisplayName:   data.DisplayName,
		GroupID:       data.GroupID,
		CreatedBy:     actorID,
	}
	if vm.OS == "" {
		vm.OS = "Linux"
	}

	if err := s.db.Create(&vm).Error; err != nil {
		return nil, err
	}

	for _, svc := range data.Services {
		row := models.Service{VMID: vm.ID, Name: svc.Name, Properties: svc.Properties}
		if err := s.db.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("vm %d created but service %q failed: %w", vm.ID, svc.Name, err)
		}
	}

	return s.GetVM(vm.ID)
}

// UpdateVM applies a partial update. Passing services replaces the full
// set: the existing attachments are deleted and the given ones inserted.
func (s *VMService) UpdateVM(id uint, data UpdateVMData) (*models.VM, error) {
	vm, err := s.GetVM(id)
	if err != nil {
		return nil, err
	}

	if data.Hostname != nil {
		if *data.Hostname == "" {
			return nil, fmt.Errorf("%w: hostname cannot be empty", ErrValidation)
		}
		vm.Hostname = *data.Hostname
	}
	if data.IPAddress != nil {
		vm.IPAddress = *data.IPAddress
	}
	if data.AdminUser != nil {
		vm.AdminUser = *data.AdminUser
	}
	if data.AdminPassword != nil {
		vm.AdminPassword = *data.AdminPassword
	}
	if data.OS != nil {
		vm.OS = *data.OS
	}
	if data.OSVersion != nil {
		vm.OSVersion = *data.OSVersion
	}
	if data.DisplayName != nil {
		vm.DisplayName = *data.DisplayName
	}
	if data.ClearGroup {
		vm.GroupID = nil
	} else if data.GroupID != nil {
		if err := s.groupExists(*data.GroupID); err != nil {
			return nil, err
		}
		vm.GroupID = data.GroupID
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.VM{}).Where("id = ?", vm.ID).Updates(map[string]interface{}{
			"hostname":       vm.Hostname,
			"ip_address":     vm.IPAddress,
			"admin_user":     vm.AdminUser,
			"admin_password": vm.AdminPassword,
			"os":             vm.OS,
			"os_version":     vm.OSVersion,
			"display_name":   vm.DisplayName,
			"group_id":       vm.GroupID,
		}).Error; err != nil {
			return err
		}

		if data.Services != nil {
			if err := tx.Where("vm_id = ?", vm.ID).Delete(&models.Service{}).Error; err != nil {
				return err
			}
			for _, svc := range *data.Services {
				row := models.Service{VMID: vm.ID, Name: svc.Name, Properties: svc.Properties}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetVM(vm.ID)
}

// DeleteVM removes a VM and its services.
func (s *VMService) DeleteVM(id uint) error {
	if _, err := s.GetVM(id); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vm_id = ?", id).Delete(&models.Service{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.VM{}, id).Error
	})
}

func (s *VMService) groupExists(id uint) error {
	var count int64
	if err := s.db.Model(&models.VMGroup{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: group %d", ErrNotFound, id)
	}
	return nil
}
