package models

import (
	"time"

	"gorm.io/datatypes"
)

// FuelTransaction is one canonical fuel-ledger entry. Fuel purchases have no
// real-world natural key, so matching relies entirely on the provider
// external id stored in the metadata map.
type FuelTransaction struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UUID         string            `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	TenantID     uint              `gorm:"not null;index" json:"tenant_id"`
	CardLastFour string            `gorm:"type:varchar(4)" json:"card_last_four"`
	Amount       float64           `gorm:"type:decimal(12,2)" json:"amount"`
	Currency     string            `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Gallons      float64           `gorm:"type:decimal(10,3)" json:"gallons"`
	Location     string            `gorm:"type:varchar(255)" json:"location"`
	ProductType  string            `gorm:"type:varchar(50)" json:"product_type"`
	TransactedAt *time.Time        `gorm:"type:timestamp;default:null;index" json:"transacted_at,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
