package repository

import (
	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// fuelTransactionRepository implements the FuelTransactionRepository interface
type fuelTransactionRepository struct {
	db *gorm.DB
}

// NewFuelTransactionRepository creates a new fuel transaction repository instance
func NewFuelTransactionRepository(db *gorm.DB) FuelTransactionRepository {
	return &fuelTransactionRepository{db: db}
}

func (r *fuelTransactionRepository) Create(tx *models.FuelTransaction) error {
	return r.db.Create(tx).Error
}

func (r *fuelTransactionRepository) GetByID(id uint) (*models.FuelTransaction, error) {
	var tx models.FuelTransaction
	if err := r.db.First(&tx, id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// GetByExternalID retrieves a tenant's fuel transaction by a stored provider
// id. Fuel entries have no natural key, so this is the only match path.
func (r *fuelTransactionRepository) GetByExternalID(tenantID uint, providerKey, externalID string) (*models.FuelTransaction, error) {
	var tx models.FuelTransaction
	path := metadataJSONPath("ext:" + providerKey)
	err := r.db.Where("tenant_id = ? AND JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?",
		tenantID, path, externalID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *fuelTransactionRepository) ListByTenant(tenantID uint, offset, limit int) ([]models.FuelTransaction, error) {
	var txs []models.FuelTransaction
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("transacted_at DESC, id DESC").Offset(offset).Limit(limit).Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *fuelTransactionRepository) CountByTenant(tenantID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.FuelTransaction{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

func (r *fuelTransactionRepository) Update(tx *models.FuelTransaction) error {
	return r.db.Save(tx).Error
}
