package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	VehicleStatusActive   = "active"
	VehicleStatusInactive = "inactive"
)

// Vehicle is the canonical power-unit record that provider data is
// reconciled into. The VIN is the natural key; external identifiers are kept
// in the metadata map under "ext:<provider>" keys, separate from the primary
// key, so repeated syncs from any provider converge on one row.
type Vehicle struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	UUID       string            `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	TenantID   uint              `gorm:"not null;index;index:ux_vehicles_tenant_vin,unique,priority:1" json:"tenant_id"`
	VIN        *string           `gorm:"type:varchar(17);index:ux_vehicles_tenant_vin,unique,priority:2" json:"vin,omitempty"`
	UnitNumber string            `gorm:"type:varchar(50)" json:"unit_number"`
	Make       string            `gorm:"type:varchar(100)" json:"make"`
	Model      string            `gorm:"type:varchar(100)" json:"model"`
	Year       int               `json:"year"`
	Status     string            `gorm:"type:varchar(32);default:'active'" json:"status"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt    `gorm:"index" json:"-"`
}
