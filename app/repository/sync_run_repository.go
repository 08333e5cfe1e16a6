package repository

import (
	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// syncRunRepository implements the SyncRunRepository interface
type syncRunRepository struct {
	db *gorm.DB
}

// NewSyncRunRepository creates a new sync run repository instance
func NewSyncRunRepository(db *gorm.DB) SyncRunRepository {
	return &syncRunRepository{db: db}
}

func (r *syncRunRepository) Create(run *models.SyncRun) error {
	return r.db.Create(run).Error
}

func (r *syncRunRepository) Update(run *models.SyncRun) error {
	return r.db.Save(run).Error
}

// ListByIntegration returns the most recent runs for one connection.
func (r *syncRunRepository) ListByIntegration(tenantIntegrationID uint, limit int) ([]models.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.SyncRun
	err := r.db.Where("tenant_integration_id = ?", tenantIntegrationID).
		Order("id DESC").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
