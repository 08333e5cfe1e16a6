package models

import "time"

const (
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
)

const (
	SyncTriggeredBySchedule = "schedule"
	SyncTriggeredByManual   = "manual"
)

// SyncRun is the audit record of one sync attempt. The health fields on the
// tenant integration hold the current state; sync runs keep the history for
// dashboards and debugging.
type SyncRun struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	TenantID            uint       `gorm:"not null;index" json:"tenant_id"`
	TenantIntegrationID uint       `gorm:"not null;index" json:"tenant_integration_id"`
	Provider            string     `gorm:"type:varchar(50);index" json:"provider"`
	TriggeredBy         string     `gorm:"type:varchar(20);not null;default:'schedule'" json:"triggered_by"`
	Status              string     `gorm:"type:varchar(20);not null;default:'running'" json:"status"`
	Created             int        `json:"created"`
	Updated             int        `json:"updated"`
	ErrorCount          int        `json:"error_count"`
	Message             string     `gorm:"type:text" json:"message,omitempty"`
	StartedAt           *time.Time `gorm:"type:timestamp;default:null" json:"started_at,omitempty"`
	FinishedAt          *time.Time `gorm:"type:timestamp;default:null" json:"finished_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
