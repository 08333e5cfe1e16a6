package repository

import (
	"strings"
	"time"

	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// tenantRepository implements the TenantRepository interface
type tenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository creates a new tenant repository instance
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(tenant *models.Tenant) error {
	return r.db.Create(tenant).Error
}

func (r *tenantRepository) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.First(&tenant, id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

// GetByAPIKeyHash resolves an API key hash to its tenant.
func (r *tenantRepository) GetByAPIKeyHash(hash string) (*models.Tenant, error) {
	trimmed := strings.TrimSpace(hash)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var tenant models.Tenant
	if err := r.db.Where("api_key_hash = ?", trimmed).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) Update(tenant *models.Tenant) error {
	return r.db.Save(tenant).Error
}

// TouchAPIKeyUsage refreshes the last-used timestamp, best effort.
func (r *tenantRepository) TouchAPIKeyUsage(id uint, at time.Time) error {
	return r.db.Model(&models.Tenant{}).Where("id = ?", id).
		Update("api_key_last_use", at).Error
}
