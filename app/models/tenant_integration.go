package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"
)

// Lifecycle states of a tenant integration. Only the token lifecycle manager
// moves a connection to IntegrationStatusError (terminal auth failure);
// transient sync failures never change the status.
const (
	IntegrationStatusNotActivated = "not_activated"
	IntegrationStatusPending      = "pending"
	IntegrationStatusActive       = "active"
	IntegrationStatusDisabled     = "disabled"
	IntegrationStatusError        = "error"
)

const DefaultSyncIntervalMinutes = 60

// TenantIntegration is one connection instance between a tenant and a
// provider from the catalog. It owns the credential blob and the health
// fields the scheduler reads and writes.
type TenantIntegration struct {
	ID                  uint                  `gorm:"primaryKey" json:"id"`
	TenantID            uint                  `gorm:"not null;index:ux_tenant_integration,unique,priority:1" json:"tenant_id"`
	IntegrationID       uint                  `gorm:"not null;index:ux_tenant_integration,unique,priority:2" json:"integration_id"`
	Integration         IntegrationDefinition `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
	Status              string                `gorm:"type:varchar(32);not null;default:'not_activated';index" json:"status" validate:"oneof=not_activated pending active disabled error"`
	Credentials         datatypes.JSON        `gorm:"type:json" json:"-"`
	Config              datatypes.JSON        `gorm:"type:json" json:"config"`
	AutoSync            bool                  `gorm:"default:true" json:"auto_sync"`
	SyncIntervalMinutes uint                  `gorm:"default:60" json:"sync_interval_minutes" validate:"omitempty,min=1,max=10080"`
	LastSyncAt          *time.Time            `gorm:"type:timestamp;default:null" json:"last_sync_at,omitempty"`
	LastSuccessAt       *time.Time            `gorm:"type:timestamp;default:null" json:"last_success_at,omitempty"`
	LastErrorAt         *time.Time            `gorm:"type:timestamp;default:null" json:"last_error_at,omitempty"`
	LastErrorMessage    string                `gorm:"type:text" json:"last_error_message,omitempty"`
	ConsecutiveFailures uint                  `gorm:"default:0" json:"consecutive_failures"`
	CreatedAt           time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ti *TenantIntegration) Validate() error {
	v := validator.New()
	return v.Struct(ti)
}

// SyncInterval returns the configured cadence as a duration, falling back to
// the default when the column is unset.
func (ti *TenantIntegration) SyncInterval() time.Duration {
	minutes := ti.SyncIntervalMinutes
	if minutes == 0 {
		minutes = DefaultSyncIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Syncable reports whether the scheduler may dispatch attempts for this
// connection at all. Pending connections are syncable so the first successful
// sync can activate them.
func (ti *TenantIntegration) Syncable() bool {
	return ti.Status == IntegrationStatusActive || ti.Status == IntegrationStatusPending
}
