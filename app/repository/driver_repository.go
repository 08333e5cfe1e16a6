package repository

import (
	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// driverRepository implements the DriverRepository interface
type driverRepository struct {
	db *gorm.DB
}

// NewDriverRepository creates a new driver repository instance
func NewDriverRepository(db *gorm.DB) DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) Create(driver *models.Driver) error {
	return r.db.Create(driver).Error
}

func (r *driverRepository) GetByID(id uint) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.First(&driver, id).Error; err != nil {
		return nil, err
	}
	return &driver, nil
}

// GetByEmail retrieves a tenant's driver by their natural key.
func (r *driverRepository) GetByEmail(tenantID uint, email string) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.Where("tenant_id = ? AND email = ?", tenantID, email).First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// GetByExternalID retrieves a tenant's driver by a stored provider id.
func (r *driverRepository) GetByExternalID(tenantID uint, providerKey, externalID string) (*models.Driver, error) {
	var driver models.Driver
	path := metadataJSONPath("ext:" + providerKey)
	err := r.db.Where("tenant_id = ? AND JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?",
		tenantID, path, externalID).First(&driver).Error
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

func (r *driverRepository) ListByTenant(tenantID uint, offset, limit int) ([]models.Driver, error) {
	var drivers []models.Driver
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("id").Offset(offset).Limit(limit).Find(&drivers).Error
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *driverRepository) CountByTenant(tenantID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Driver{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

func (r *driverRepository) Update(driver *models.Driver) error {
	return r.db.Save(driver).Error
}
