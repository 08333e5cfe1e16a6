package syncqueue

import (
	"time"
)

// SyncJobStatus defines the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending    SyncJobStatus = "pending"
	SyncJobStatusProcessing SyncJobStatus = "processing"
	SyncJobStatusCompleted  SyncJobStatus = "completed"
	SyncJobStatusFailed     SyncJobStatus = "failed"
)

// SyncJob represents one queued sync attempt for a tenant integration. There
// is no per-job retry machinery: the scheduler enqueues a fresh job on the
// next tick, so a failed job is terminal for that attempt.
type SyncJob struct {
	ID                  string        `json:"id"`
	TenantIntegrationID uint          `json:"tenant_integration_id"`
	TriggeredBy         string        `json:"triggered_by"`
	Status              SyncJobStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	ProcessedAt         *time.Time    `json:"processed_at,omitempty"`
	CompletedAt         *time.Time    `json:"completed_at,omitempty"`
	ErrorMsg            string        `json:"error_msg,omitempty"`
}

// MarkAsProcessing updates the job status to processing
func (j *SyncJob) MarkAsProcessing() {
	now := time.Now()
	j.Status = SyncJobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *SyncJob) MarkAsCompleted() {
	now := time.Now()
	j.Status = SyncJobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *SyncJob) MarkAsFailed(errorMsg string) {
	j.Status = SyncJobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
}
