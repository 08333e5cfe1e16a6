package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/truckwise/truckwise/internal/pkg/connector/reconcile"
)

// Repositories bundles every repository implementation over one DB handle
type Repositories struct {
	Tenant            TenantRepository
	Definition        IntegrationDefinitionRepository
	TenantIntegration TenantIntegrationRepository
	Vehicle           VehicleRepository
	Driver            DriverRepository
	FuelTransaction   FuelTransactionRepository
	SyncRun           SyncRunRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tenant:            NewTenantRepository(db),
		Definition:        NewIntegrationDefinitionRepository(db),
		TenantIntegration: NewTenantIntegrationRepository(db),
		Vehicle:           NewVehicleRepository(db),
		Driver:            NewDriverRepository(db),
		FuelTransaction:   NewFuelTransactionRepository(db),
		SyncRun:           NewSyncRunRepository(db),
	}
}

// EntityStore returns the reconcile store over the canonical repositories.
func (r *Repositories) EntityStore() reconcile.Store {
	return NewEntityStore(r.Vehicle, r.Driver, r.FuelTransaction)
}

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory
func GetGlobalFactory() *Factory {
	return globalFactory
}
