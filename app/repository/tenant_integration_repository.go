package repository

import (
	"time"

	"github.com/truckwise/truckwise/app/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// tenantIntegrationRepository implements TenantIntegrationRepository
type tenantIntegrationRepository struct {
	db *gorm.DB
}

// NewTenantIntegrationRepository creates a new tenant integration repository instance
func NewTenantIntegrationRepository(db *gorm.DB) TenantIntegrationRepository {
	return &tenantIntegrationRepository{db: db}
}

func (r *tenantIntegrationRepository) Create(ti *models.TenantIntegration) error {
	return r.db.Create(ti).Error
}

func (r *tenantIntegrationRepository) GetByID(id uint) (*models.TenantIntegration, error) {
	var ti models.TenantIntegration
	if err := r.db.Preload("Integration").First(&ti, id).Error; err != nil {
		return nil, err
	}
	return &ti, nil
}

func (r *tenantIntegrationRepository) GetByIDForTenant(tenantID, id uint) (*models.TenantIntegration, error) {
	var ti models.TenantIntegration
	err := r.db.Preload("Integration").
		Where("id = ? AND tenant_id = ?", id, tenantID).First(&ti).Error
	if err != nil {
		return nil, err
	}
	return &ti, nil
}

func (r *tenantIntegrationRepository) GetByTenantAndIntegration(tenantID, integrationID uint) (*models.TenantIntegration, error) {
	var ti models.TenantIntegration
	err := r.db.Preload("Integration").
		Where("tenant_id = ? AND integration_id = ?", tenantID, integrationID).First(&ti).Error
	if err != nil {
		return nil, err
	}
	return &ti, nil
}

func (r *tenantIntegrationRepository) ListByTenant(tenantID uint) ([]models.TenantIntegration, error) {
	var tis []models.TenantIntegration
	err := r.db.Preload("Integration").
		Where("tenant_id = ?", tenantID).Order("id").Find(&tis).Error
	if err != nil {
		return nil, err
	}
	return tis, nil
}

// ListSyncCandidates returns every connection the scheduler may consider:
// auto-sync enabled and in a syncable lifecycle state. Dueness is decided by
// the scheduler, not the query, so the boundary logic stays testable.
func (r *tenantIntegrationRepository) ListSyncCandidates() ([]models.TenantIntegration, error) {
	var tis []models.TenantIntegration
	err := r.db.Preload("Integration").
		Where("auto_sync = ? AND status IN ?", true,
			[]string{models.IntegrationStatusActive, models.IntegrationStatusPending}).
		Find(&tis).Error
	if err != nil {
		return nil, err
	}
	return tis, nil
}

func (r *tenantIntegrationRepository) Update(ti *models.TenantIntegration) error {
	return r.db.Save(ti).Error
}

func (r *tenantIntegrationRepository) Delete(id uint) error {
	return r.db.Delete(&models.TenantIntegration{}, id).Error
}

// SaveCredentials replaces the credential blob in one column write. Rotating
// refresh-token pairs depend on this being a single atomic update.
func (r *tenantIntegrationRepository) SaveCredentials(id uint, blob []byte) error {
	return r.db.Model(&models.TenantIntegration{}).Where("id = ?", id).
		Update("credentials", datatypes.JSON(blob)).Error
}

// RecordSuccess resets the failure accounting and promotes a pending
// connection to active.
func (r *tenantIntegrationRepository) RecordSuccess(id uint, at time.Time) error {
	return r.db.Model(&models.TenantIntegration{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":               models.IntegrationStatusActive,
			"last_sync_at":         at,
			"last_success_at":      at,
			"last_error_at":        nil,
			"last_error_message":   "",
			"consecutive_failures": 0,
		}).Error
}

// RecordTransientFailure bumps the failure counter without touching the
// lifecycle status; a transient sync failure never disables an integration.
func (r *tenantIntegrationRepository) RecordTransientFailure(id uint, at time.Time, message string) error {
	return r.db.Model(&models.TenantIntegration{}).Where("id = ?", id).
		Updates(map[string]any{
			"last_sync_at":         at,
			"last_error_at":        at,
			"last_error_message":   message,
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
		}).Error
}

// RecordAuthFailure is the only path that moves a connection into the error
// state; the scheduler skips it until an operator reconnects.
func (r *tenantIntegrationRepository) RecordAuthFailure(id uint, at time.Time, message string) error {
	return r.db.Model(&models.TenantIntegration{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":               models.IntegrationStatusError,
			"last_sync_at":         at,
			"last_error_at":        at,
			"last_error_message":   message,
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
		}).Error
}
