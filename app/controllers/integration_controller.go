package controllers

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/connector"
	"github.com/truckwise/truckwise/internal/pkg/syncqueue"
	"github.com/truckwise/truckwise/internal/pkg/tenantcontext"
)

var integrationRegistry *connector.Registry

// InitializeIntegrationController wires the provider registry into the
// integration handlers. Must run before the router installs routes.
func InitializeIntegrationController(registry *connector.Registry) {
	integrationRegistry = registry
}

// ConnectIntegrationRequest is the payload for connecting a provider. The
// credentials object is strategy-specific and validated by the credential
// codec, not here.
type ConnectIntegrationRequest struct {
	Credentials         json.RawMessage `json:"credentials" validate:"required"`
	SyncIntervalMinutes uint            `json:"sync_interval_minutes" validate:"omitempty,min=1,max=10080"`
	AutoSync            *bool           `json:"auto_sync"`
	Config              map[string]any  `json:"config"`
}

// HandleListCatalog returns the enabled provider catalog.
func HandleListCatalog(c *fiber.Ctx) error {
	repos := repository.GetGlobalFactory().GetRepositories()
	defs, err := repos.Definition.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load provider catalog"})
	}

	enabled := make([]models.IntegrationDefinition, 0, len(defs))
	for _, def := range defs {
		if def.Enabled {
			enabled = append(enabled, def)
		}
	}
	return c.JSON(fiber.Map{"data": enabled})
}

// HandleListIntegrations returns the authenticated tenant's connections.
func HandleListIntegrations(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	repos := repository.GetGlobalFactory().GetRepositories()

	tis, err := repos.TenantIntegration.ListByTenant(tc.TenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load integrations"})
	}
	return c.JSON(fiber.Map{"data": tis})
}

// HandleConnectIntegration creates or re-activates a connection between the
// authenticated tenant and the provider named in the route. Credentials are
// verified for structural completeness before anything is stored.
func HandleConnectIntegration(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	providerKey := c.Params("key")
	repos := repository.GetGlobalFactory().GetRepositories()

	def, err := repos.Definition.GetByKey(providerKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown provider"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load provider"})
	}
	if !def.Enabled {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Provider disabled"})
	}
	if _, ok := integrationRegistry.Lookup(def.Key); !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Provider has no adapter registered"})
	}

	var req ConnectIntegrationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}
	if err := validator.New().Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	// Reject structurally incomplete credentials before storing anything.
	strategy := connector.AuthStrategy(def.AuthStrategy)
	if _, err := connector.DecodeCredentials(def.Key, strategy, req.Credentials); err != nil {
		var cfgErr *connector.ConfigError
		if errors.As(err, &cfgErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":   "unprocessable_entity",
				"message": "Credentials incomplete",
				"missing": cfgErr.Missing,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid credentials payload"})
	}

	autoSync := true
	if req.AutoSync != nil {
		autoSync = *req.AutoSync
	}
	interval := req.SyncIntervalMinutes
	if interval == 0 {
		interval = models.DefaultSyncIntervalMinutes
	}
	var configBlob datatypes.JSON
	if req.Config != nil {
		raw, err := json.Marshal(req.Config)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid config payload"})
		}
		configBlob = datatypes.JSON(raw)
	}

	ti, err := repos.TenantIntegration.GetByTenantAndIntegration(tc.TenantID, def.ID)
	switch {
	case err == nil:
		// Reconnect: fresh credentials reset the failure accounting and move
		// the connection back to pending until the first successful sync.
		ti.Credentials = datatypes.JSON(req.Credentials)
		ti.Config = configBlob
		ti.Status = models.IntegrationStatusPending
		ti.AutoSync = autoSync
		ti.SyncIntervalMinutes = interval
		ti.ConsecutiveFailures = 0
		ti.LastErrorAt = nil
		ti.LastErrorMessage = ""
		if err := repos.TenantIntegration.Update(ti); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to update integration"})
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		ti = &models.TenantIntegration{
			TenantID:            tc.TenantID,
			IntegrationID:       def.ID,
			Status:              models.IntegrationStatusPending,
			Credentials:         datatypes.JSON(req.Credentials),
			Config:              configBlob,
			AutoSync:            autoSync,
			SyncIntervalMinutes: interval,
		}
		if err := repos.TenantIntegration.Create(ti); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create integration"})
		}
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load integration"})
	}

	// The first sync validates the credentials against the provider and
	// promotes the connection to active.
	if mgr := syncqueue.GetManager(); mgr != nil && mgr.IsRunning() {
		if _, err := mgr.TriggerSync(ti.ID); err != nil {
			log.Warnf("[Integration] Failed to enqueue initial sync for integration %d: %v", ti.ID, err)
		}
	}

	ti.Integration = *def
	return c.Status(fiber.StatusCreated).JSON(ti)
}

// HandleDisconnectIntegration disables a connection and discards its stored
// credentials.
func HandleDisconnectIntegration(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	ti, errResp := loadTenantIntegration(c, tc.TenantID)
	if ti == nil {
		return errResp
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	ti.Status = models.IntegrationStatusDisabled
	ti.Credentials = nil
	ti.AutoSync = false
	if err := repos.TenantIntegration.Update(ti); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to disconnect integration"})
	}

	return c.JSON(fiber.Map{"message": "Integration disconnected", "id": ti.ID})
}

// HandleTriggerSync enqueues a manual sync attempt for one connection.
func HandleTriggerSync(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	ti, errResp := loadTenantIntegration(c, tc.TenantID)
	if ti == nil {
		return errResp
	}

	if !ti.Syncable() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "Integration is not syncable in status " + ti.Status,
		})
	}

	mgr := syncqueue.GetManager()
	if mgr == nil || !mgr.IsRunning() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "service_unavailable", "message": "Sync scheduler is not running"})
	}

	job, err := mgr.TriggerSync(ti.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to enqueue sync"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": job.ID, "status": string(job.Status)})
}

// HandleIntegrationHealth returns the connection's health fields and its
// recent sync attempts.
func HandleIntegrationHealth(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	ti, errResp := loadTenantIntegration(c, tc.TenantID)
	if ti == nil {
		return errResp
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	runs, err := repos.SyncRun.ListByIntegration(ti.ID, 20)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load sync history"})
	}

	return c.JSON(fiber.Map{
		"id":                   ti.ID,
		"provider":             ti.Integration.Key,
		"status":               ti.Status,
		"auto_sync":            ti.AutoSync,
		"sync_interval_minutes": ti.SyncIntervalMinutes,
		"last_sync_at":         ti.LastSyncAt,
		"last_success_at":      ti.LastSuccessAt,
		"last_error_at":        ti.LastErrorAt,
		"last_error_message":   ti.LastErrorMessage,
		"consecutive_failures": ti.ConsecutiveFailures,
		"recent_runs":          runs,
	})
}

// loadTenantIntegration resolves the :id route param scoped to the tenant.
// On failure the error response has already been written; the caller just
// returns it.
func loadTenantIntegration(c *fiber.Ctx, tenantID uint) (*models.TenantIntegration, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid integration id"})
	}

	repos := repository.GetGlobalFactory().GetRepositories()
	ti, err := repos.TenantIntegration.GetByIDForTenant(tenantID, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Integration not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load integration"})
	}
	return ti, nil
}
