package repository

import (
	"time"

	"github.com/truckwise/truckwise/app/models"
)

// TenantRepository defines the interface for tenant-related database operations
type TenantRepository interface {
	Create(tenant *models.Tenant) error
	GetByID(id uint) (*models.Tenant, error)
	GetByAPIKeyHash(hash string) (*models.Tenant, error)
	Update(tenant *models.Tenant) error
	TouchAPIKeyUsage(id uint, at time.Time) error
}

// IntegrationDefinitionRepository defines the interface for the provider catalog
type IntegrationDefinitionRepository interface {
	GetByID(id uint) (*models.IntegrationDefinition, error)
	GetByKey(key string) (*models.IntegrationDefinition, error)
	List() ([]models.IntegrationDefinition, error)
	Seed(defs []models.IntegrationDefinition) error
}

// TenantIntegrationRepository defines the interface for connection instances,
// their credential blobs and their health fields. All health writes funnel
// through the Record* methods so the reset/increment invariants live in one
// place.
type TenantIntegrationRepository interface {
	Create(ti *models.TenantIntegration) error
	GetByID(id uint) (*models.TenantIntegration, error)
	GetByIDForTenant(tenantID, id uint) (*models.TenantIntegration, error)
	GetByTenantAndIntegration(tenantID, integrationID uint) (*models.TenantIntegration, error)
	ListByTenant(tenantID uint) ([]models.TenantIntegration, error)
	ListSyncCandidates() ([]models.TenantIntegration, error)
	Update(ti *models.TenantIntegration) error
	Delete(id uint) error

	SaveCredentials(id uint, blob []byte) error
	RecordSuccess(id uint, at time.Time) error
	RecordTransientFailure(id uint, at time.Time, message string) error
	RecordAuthFailure(id uint, at time.Time, message string) error
}

// VehicleRepository defines the interface for canonical vehicle records
type VehicleRepository interface {
	Create(vehicle *models.Vehicle) error
	GetByID(id uint) (*models.Vehicle, error)
	GetByVIN(tenantID uint, vin string) (*models.Vehicle, error)
	GetByExternalID(tenantID uint, providerKey, externalID string) (*models.Vehicle, error)
	ListByTenant(tenantID uint, offset, limit int) ([]models.Vehicle, error)
	CountByTenant(tenantID uint) (int64, error)
	Update(vehicle *models.Vehicle) error
}

// DriverRepository defines the interface for canonical driver records
type DriverRepository interface {
	Create(driver *models.Driver) error
	GetByID(id uint) (*models.Driver, error)
	GetByEmail(tenantID uint, email string) (*models.Driver, error)
	GetByExternalID(tenantID uint, providerKey, externalID string) (*models.Driver, error)
	ListByTenant(tenantID uint, offset, limit int) ([]models.Driver, error)
	CountByTenant(tenantID uint) (int64, error)
	Update(driver *models.Driver) error
}

// FuelTransactionRepository defines the interface for canonical fuel-ledger entries
type FuelTransactionRepository interface {
	Create(tx *models.FuelTransaction) error
	GetByID(id uint) (*models.FuelTransaction, error)
	GetByExternalID(tenantID uint, providerKey, externalID string) (*models.FuelTransaction, error)
	ListByTenant(tenantID uint, offset, limit int) ([]models.FuelTransaction, error)
	CountByTenant(tenantID uint) (int64, error)
	Update(tx *models.FuelTransaction) error
}

// SyncRunRepository defines the interface for sync attempt audit records
type SyncRunRepository interface {
	Create(run *models.SyncRun) error
	Update(run *models.SyncRun) error
	ListByIntegration(tenantIntegrationID uint, limit int) ([]models.SyncRun, error)
}
