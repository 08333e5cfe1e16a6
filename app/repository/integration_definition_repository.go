package repository

import (
	"github.com/truckwise/truckwise/app/models"
	"gorm.io/gorm"
)

// integrationDefinitionRepository implements IntegrationDefinitionRepository
type integrationDefinitionRepository struct {
	db *gorm.DB
}

// NewIntegrationDefinitionRepository creates a new catalog repository instance
func NewIntegrationDefinitionRepository(db *gorm.DB) IntegrationDefinitionRepository {
	return &integrationDefinitionRepository{db: db}
}

func (r *integrationDefinitionRepository) GetByID(id uint) (*models.IntegrationDefinition, error) {
	var def models.IntegrationDefinition
	if err := r.db.First(&def, id).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *integrationDefinitionRepository) GetByKey(key string) (*models.IntegrationDefinition, error) {
	var def models.IntegrationDefinition
	if err := r.db.Where("`key` = ?", key).First(&def).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *integrationDefinitionRepository) List() ([]models.IntegrationDefinition, error) {
	var defs []models.IntegrationDefinition
	if err := r.db.Where("enabled = ?", true).Order("display_name").Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}

// Seed inserts catalog entries that do not exist yet. Existing rows are left
// untouched so the catalog stays effectively immutable after first boot.
func (r *integrationDefinitionRepository) Seed(defs []models.IntegrationDefinition) error {
	for i := range defs {
		def := defs[i]
		err := r.db.Where("`key` = ?", def.Key).FirstOrCreate(&def).Error
		if err != nil {
			return err
		}
	}
	return nil
}
