package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/datatypes"

	"github.com/truckwise/truckwise/app/controllers"
	"github.com/truckwise/truckwise/app/models"
	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/archive"
	"github.com/truckwise/truckwise/internal/pkg/cache"
	"github.com/truckwise/truckwise/internal/pkg/connector"
	"github.com/truckwise/truckwise/internal/pkg/connector/providers/geotab"
	"github.com/truckwise/truckwise/internal/pkg/connector/providers/motive"
	"github.com/truckwise/truckwise/internal/pkg/connector/providers/samsara"
	"github.com/truckwise/truckwise/internal/pkg/connector/providers/wexfleet"
	"github.com/truckwise/truckwise/internal/pkg/connector/reconcile"
	"github.com/truckwise/truckwise/internal/pkg/connector/token"
	"github.com/truckwise/truckwise/internal/pkg/database"
	"github.com/truckwise/truckwise/internal/pkg/env"
	"github.com/truckwise/truckwise/internal/pkg/router"
	"github.com/truckwise/truckwise/internal/pkg/syncqueue"
)

func main() {
	app := NewApplication()

	// Graceful stop: drain the sync workers before closing the listener.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("Shutdown signal received")
		if mgr := syncqueue.GetManager(); mgr != nil {
			mgr.Stop()
		}
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalFactory().GetRepositories()

	if err := seedIntegrationDefinitions(repos); err != nil {
		log.Fatalf("Failed to seed integration definitions: %v", err)
	}

	registry := buildRegistry()
	controllers.InitializeIntegrationController(registry)

	tokens := token.NewManager(repos.TenantIntegration)
	engine := reconcile.NewEngine(repos.EntityStore())
	archiveClient := setupArchive()

	runner := syncqueue.NewSyncRunner(repos, registry, tokens, engine, archiveClient)
	syncqueue.InitManager(runner, repos).Start()

	app := fiber.New(fiber.Config{
		AppName: "truckwise",
	})

	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app
}

// buildRegistry wires every provider adapter with its endpoints and app
// OAuth client configuration from the environment.
func buildRegistry() *connector.Registry {
	registry := connector.NewRegistry()

	registry.MustRegister(motive.NewDescriptor(motive.Config{
		BaseURL:      env.GetEnv("MOTIVE_BASE_URL", ""),
		TokenURL:     env.GetEnv("MOTIVE_TOKEN_URL", ""),
		ClientID:     env.GetEnv("MOTIVE_CLIENT_ID", ""),
		ClientSecret: env.GetEnv("MOTIVE_CLIENT_SECRET", ""),
	}))

	registry.MustRegister(samsara.NewDescriptor(samsara.Config{
		BaseURL: env.GetEnv("SAMSARA_BASE_URL", ""),
	}))

	registry.MustRegister(geotab.NewDescriptor(geotab.Config{
		BaseURL:  env.GetEnv("GEOTAB_BASE_URL", ""),
		LoginURL: env.GetEnv("GEOTAB_LOGIN_URL", ""),
	}))

	registry.MustRegister(wexfleet.NewDescriptor(wexfleet.Config{
		BaseURL:  env.GetEnv("WEXFLEET_BASE_URL", ""),
		TokenURL: env.GetEnv("WEXFLEET_TOKEN_URL", ""),
	}))

	log.Infof("Provider registry initialized: %v", registry.Keys())
	return registry
}

// seedIntegrationDefinitions keeps the provider catalog in sync with the
// adapters this build ships. Seeding is idempotent.
func seedIntegrationDefinitions(repos *repository.Repositories) error {
	return repos.Definition.Seed([]models.IntegrationDefinition{
		{
			Key:          "motive",
			DisplayName:  "Motive",
			Category:     "telematics",
			AuthStrategy: models.AuthStrategyAuthorizationCode,
			Capabilities: datatypes.JSON(`["vehicle","driver","fuel_transaction"]`),
			Enabled:      true,
		},
		{
			Key:          "samsara",
			DisplayName:  "Samsara",
			Category:     "telematics",
			AuthStrategy: models.AuthStrategyAPIKey,
			Capabilities: datatypes.JSON(`["vehicle","driver"]`),
			Enabled:      true,
		},
		{
			Key:          "geotab",
			DisplayName:  "Geotab",
			Category:     "telematics",
			AuthStrategy: models.AuthStrategySession,
			Capabilities: datatypes.JSON(`["vehicle","driver"]`),
			Enabled:      true,
		},
		{
			Key:          "wexfleet",
			DisplayName:  "WEX Fleet",
			Category:     "fuel_card",
			AuthStrategy: models.AuthStrategyClientCredentials,
			Capabilities: datatypes.JSON(`["fuel_transaction"]`),
			Enabled:      true,
		},
	})
}

// setupArchive initializes the raw payload archive when configured. A
// disabled or misconfigured archive never blocks startup.
func setupArchive() *archive.Client {
	cfg, err := archive.LoadConfig()
	if err != nil {
		log.Warnf("Payload archive configuration invalid, archive disabled: %v", err)
		return nil
	}
	if !cfg.IsEnabled() {
		return nil
	}

	client, err := archive.NewClient(cfg)
	if err != nil {
		log.Warnf("Payload archive unavailable, continuing without it: %v", err)
		return nil
	}
	return client
}
