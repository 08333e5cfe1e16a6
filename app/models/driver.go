package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DriverStatusActive   = "active"
	DriverStatusInactive = "inactive"
)

// Driver is the canonical driver record. Email is the natural key when
// present; provider identifiers live in the metadata map.
type Driver struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	UUID          string            `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	TenantID      uint              `gorm:"not null;index;index:ux_drivers_tenant_email,unique,priority:1" json:"tenant_id"`
	Email         *string           `gorm:"type:varchar(200);index:ux_drivers_tenant_email,unique,priority:2" json:"email,omitempty"`
	FirstName     string            `gorm:"type:varchar(100)" json:"first_name"`
	LastName      string            `gorm:"type:varchar(100)" json:"last_name"`
	Phone         string            `gorm:"type:varchar(30)" json:"phone"`
	LicenseNumber string            `gorm:"type:varchar(50)" json:"license_number"`
	LicenseState  string            `gorm:"type:varchar(10)" json:"license_state"`
	Status        string            `gorm:"type:varchar(32);default:'active'" json:"status"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
}
