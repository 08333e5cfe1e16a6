package repository

import (
	"fmt"

	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// metadataJSONPath builds a quoted MySQL JSON path for a metadata key. The
// external-id keys contain a colon, so quoting is required.
func metadataJSONPath(key string) string {
	return fmt.Sprintf(`$."%s"`, key)
}

// vehicleRepository implements the VehicleRepository interface
type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository instance
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) Create(vehicle *models.Vehicle) error {
	return r.db.Create(vehicle).Error
}

func (r *vehicleRepository) GetByID(id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.First(&vehicle, id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetByVIN retrieves a tenant's vehicle by its natural key.
func (r *vehicleRepository) GetByVIN(tenantID uint, vin string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.Where("tenant_id = ? AND vin = ?", tenantID, vin).First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// GetByExternalID retrieves a tenant's vehicle by a stored provider id.
func (r *vehicleRepository) GetByExternalID(tenantID uint, providerKey, externalID string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	path := metadataJSONPath("ext:" + providerKey)
	err := r.db.Where("tenant_id = ? AND JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) = ?",
		tenantID, path, externalID).First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *vehicleRepository) ListByTenant(tenantID uint, offset, limit int) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("id").Offset(offset).Limit(limit).Find(&vehicles).Error
	if err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (r *vehicleRepository) CountByTenant(tenantID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Vehicle{}).Where("tenant_id = ?", tenantID).Count(&count).Error
	return count, err
}

func (r *vehicleRepository) Update(vehicle *models.Vehicle) error {
	return r.db.Save(vehicle).Error
}
