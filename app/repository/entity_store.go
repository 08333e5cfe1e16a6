package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/internal/pkg/connector"
	"github.com/truckwise/truckwise/internal/pkg/connector/reconcile"
)

// entityStore adapts the three canonical-entity repositories to the
// reconciliation engine's store contract.
type entityStore struct {
	vehicles VehicleRepository
	drivers  DriverRepository
	fuel     FuelTransactionRepository
}

// NewEntityStore builds the reconcile store over the fleet repositories.
func NewEntityStore(vehicles VehicleRepository, drivers DriverRepository, fuel FuelTransactionRepository) reconcile.Store {
	return &entityStore{vehicles: vehicles, drivers: drivers, fuel: fuel}
}

func (s *entityStore) FindByNaturalKey(ctx context.Context, tenantID uint, kind connector.EntityKind, naturalKey string) (*reconcile.Match, error) {
	switch kind {
	case connector.KindVehicle:
		v, err := s.vehicles.GetByVIN(tenantID, naturalKey)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &reconcile.Match{ID: v.ID, Metadata: v.Metadata}, nil
	case connector.KindDriver:
		d, err := s.drivers.GetByEmail(tenantID, naturalKey)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &reconcile.Match{ID: d.ID, Metadata: d.Metadata}, nil
	case connector.KindFuelTransaction:
		// Fuel entries have no natural key.
		return nil, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func (s *entityStore) FindByExternalID(ctx context.Context, tenantID uint, kind connector.EntityKind, providerKey, externalID string) (*reconcile.Match, error) {
	switch kind {
	case connector.KindVehicle:
		v, err := s.vehicles.GetByExternalID(tenantID, providerKey, externalID)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &reconcile.Match{ID: v.ID, Metadata: v.Metadata}, nil
	case connector.KindDriver:
		d, err := s.drivers.GetByExternalID(tenantID, providerKey, externalID)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &reconcile.Match{ID: d.ID, Metadata: d.Metadata}, nil
	case connector.KindFuelTransaction:
		t, err := s.fuel.GetByExternalID(tenantID, providerKey, externalID)
		if err != nil {
			return nil, ignoreNotFound(err)
		}
		return &reconcile.Match{ID: t.ID, Metadata: t.Metadata}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func (s *entityStore) Create(ctx context.Context, tenantID uint, item connector.Item, metadata map[string]any) error {
	switch item.Kind {
	case connector.KindVehicle:
		v := &models.Vehicle{
			UUID:     uuid.New().String(),
			TenantID: tenantID,
			Status:   models.VehicleStatusActive,
			Metadata: datatypes.JSONMap(metadata),
		}
		applyVehicleFields(v, item.Fields)
		return s.vehicles.Create(v)
	case connector.KindDriver:
		d := &models.Driver{
			UUID:     uuid.New().String(),
			TenantID: tenantID,
			Status:   models.DriverStatusActive,
			Metadata: datatypes.JSONMap(metadata),
		}
		applyDriverFields(d, item.Fields)
		return s.drivers.Create(d)
	case connector.KindFuelTransaction:
		t := &models.FuelTransaction{
			UUID:     uuid.New().String(),
			TenantID: tenantID,
			Metadata: datatypes.JSONMap(metadata),
		}
		applyFuelFields(t, item.Fields)
		return s.fuel.Create(t)
	}
	return fmt.Errorf("unknown entity kind %q", item.Kind)
}

func (s *entityStore) Update(ctx context.Context, tenantID uint, kind connector.EntityKind, id uint, item connector.Item, metadata map[string]any) error {
	switch kind {
	case connector.KindVehicle:
		v, err := s.vehicles.GetByID(id)
		if err != nil {
			return err
		}
		applyVehicleFields(v, item.Fields)
		v.Metadata = datatypes.JSONMap(metadata)
		return s.vehicles.Update(v)
	case connector.KindDriver:
		d, err := s.drivers.GetByID(id)
		if err != nil {
			return err
		}
		applyDriverFields(d, item.Fields)
		d.Metadata = datatypes.JSONMap(metadata)
		return s.drivers.Update(d)
	case connector.KindFuelTransaction:
		t, err := s.fuel.GetByID(id)
		if err != nil {
			return err
		}
		applyFuelFields(t, item.Fields)
		t.Metadata = datatypes.JSONMap(metadata)
		return s.fuel.Update(t)
	}
	return fmt.Errorf("unknown entity kind %q", kind)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// Field application overwrites simple scalars from the item; absent keys
// leave the current value alone.

func applyVehicleFields(v *models.Vehicle, fields map[string]any) {
	if vin := stringField(fields, "vin"); vin != "" {
		v.VIN = &vin
	}
	if s := stringField(fields, "unit_number"); s != "" {
		v.UnitNumber = s
	}
	if s := stringField(fields, "make"); s != "" {
		v.Make = s
	}
	if s := stringField(fields, "model"); s != "" {
		v.Model = s
	}
	if y := intField(fields, "year"); y != 0 {
		v.Year = y
	}
	if s := stringField(fields, "status"); s != "" {
		v.Status = s
	}
}

func applyDriverFields(d *models.Driver, fields map[string]any) {
	if email := stringField(fields, "email"); email != "" {
		d.Email = &email
	}
	if s := stringField(fields, "first_name"); s != "" {
		d.FirstName = s
	}
	if s := stringField(fields, "last_name"); s != "" {
		d.LastName = s
	}
	if s := stringField(fields, "phone"); s != "" {
		d.Phone = s
	}
	if s := stringField(fields, "license_number"); s != "" {
		d.LicenseNumber = s
	}
	if s := stringField(fields, "license_state"); s != "" {
		d.LicenseState = s
	}
	if s := stringField(fields, "status"); s != "" {
		d.Status = s
	}
}

func applyFuelFields(t *models.FuelTransaction, fields map[string]any) {
	if s := stringField(fields, "card_last_four"); s != "" {
		t.CardLastFour = s
	}
	if f, ok := floatField(fields, "amount"); ok {
		t.Amount = f
	}
	if f, ok := floatField(fields, "gallons"); ok {
		t.Gallons = f
	}
	if s := stringField(fields, "currency"); s != "" {
		t.Currency = s
	}
	if s := stringField(fields, "location"); s != "" {
		t.Location = s
	}
	if s := stringField(fields, "product_type"); s != "" {
		t.ProductType = s
	}
	if ts := timeField(fields, "transacted_at"); ts != nil {
		t.TransactedAt = ts
	}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func intField(fields map[string]any, key string) int {
	switch v := fields[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func floatField(fields map[string]any, key string) (float64, bool) {
	switch v := fields[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func timeField(fields map[string]any, key string) *time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return &v
	case *time.Time:
		return v
	case string:
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			return &ts
		}
	}
	return nil
}
