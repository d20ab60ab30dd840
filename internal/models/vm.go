package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// VM is a managed virtual machine record with its admin credentials.
// A VM owns its services (removed with it) and belongs to at most one
// group (removed from it, never with it).
type VM struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Hostname      string    `json:"hostname" gorm:"type:varchar(255);not null;index"`
	IPAddress     string    `json:"ip_address" gorm:"type:varchar(45);not null"`
	AdminUser     string    `json:"admin_user" gorm:"type:varchar(255);not null"`
	AdminPassword string    `json:"admin_password" gorm:"type:varchar(255);not null"`
	OS            string    `json:"os" gorm:"type:varchar(100);default:'Linux'"`
	OSVersion     string    `json:"os_version" gorm:"type:varchar(100)"`
	DisplayName   string    `json:"display_name" gorm:"type:varchar(255)"`
	GroupID       *uint     `json:"group_id" gorm:"index"`
	CreatedBy     string    `json:"created_by" gorm:"type:varchar(36)"`
	Services      []Service `json:"services" gorm:"foreignKey:VMID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Service is a typed record attached to a VM. Name identifies the
// ServiceType whose field list gives the property bag its shape.
type Service struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	VMID       uint      `json:"vm_id" gorm:"not null;index"`
	Name       string    `json:"name" gorm:"type:varchar(255);not null"`
	Properties JSONMap   `json:"properties" gorm:"type:json"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ServiceType is read-only reference data driving form generation and
// label lookup.
type ServiceType struct {
	ID             uint              `json:"id" gorm:"primaryKey"`
	Name           string            `json:"name" gorm:"type:varchar(255);uniqueIndex;not null"`
	PropertyFields PropertyFieldList `json:"property_fields" gorm:"type:json"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// PropertyField describes one field of a service type's property bag.
type PropertyField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Type  string `json:"type"` // text, number, array, password
}

type VMGroup struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	Color       string    `json:"color" gorm:"type:varchar(20)"`
	CreatedBy   string    `json:"created_by" gorm:"type:varchar(36)"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// JSONMap is a custom type for JSON object storage
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface
func (m JSONMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, m)
}

// PropertyFieldList is a custom type for JSON array storage
type PropertyFieldList []PropertyField

// Value implements the driver.Valuer interface
func (l PropertyFieldList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface
func (l *PropertyFieldList) Scan(value interface{}) error {
	if value == nil {
		*l = PropertyFieldList{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, l)
}
