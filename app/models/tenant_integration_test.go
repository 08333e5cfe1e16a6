package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncIntervalDefaultsWhenUnset(t *testing.T) {
	ti := &TenantIntegration{}
	assert.Equal(t, 60*time.Minute, ti.SyncInterval())

	ti.SyncIntervalMinutes = 15
	assert.Equal(t, 15*time.Minute, ti.SyncInterval())
}

func TestSyncable(t *testing.T) {
	tests := []struct {
		status   string
		syncable bool
	}{
		{IntegrationStatusActive, true},
		{IntegrationStatusPending, true},
		{IntegrationStatusNotActivated, false},
		{IntegrationStatusDisabled, false},
		{IntegrationStatusError, false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			ti := &TenantIntegration{Status: tt.status}
			assert.Equal(t, tt.syncable, ti.Syncable())
		})
	}
}

func TestValidateRejectsUnknownStatus(t *testing.T) {
	ti := &TenantIntegration{Status: "paused"}
	assert.Error(t, ti.Validate())

	ti.Status = IntegrationStatusActive
	assert.NoError(t, ti.Validate())
}
