package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/truckwise/truckwise/app/repository"
	"github.com/truckwise/truckwise/internal/pkg/tenantcontext"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// HandleListVehicles returns the tenant's canonical vehicles, paged.
func HandleListVehicles(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	page, perPage := pagingParams(c)
	repos := repository.GetGlobalFactory().GetRepositories()

	total, err := repos.Vehicle.CountByTenant(tc.TenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count vehicles"})
	}
	vehicles, err := repos.Vehicle.ListByTenant(tc.TenantID, (page-1)*perPage, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load vehicles"})
	}

	return c.JSON(fiber.Map{"data": vehicles, "page": page, "per_page": perPage, "total": total})
}

// HandleListDrivers returns the tenant's canonical drivers, paged.
func HandleListDrivers(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	page, perPage := pagingParams(c)
	repos := repository.GetGlobalFactory().GetRepositories()

	total, err := repos.Driver.CountByTenant(tc.TenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count drivers"})
	}
	drivers, err := repos.Driver.ListByTenant(tc.TenantID, (page-1)*perPage, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load drivers"})
	}

	return c.JSON(fiber.Map{"data": drivers, "page": page, "per_page": perPage, "total": total})
}

// HandleListFuelTransactions returns the tenant's fuel ledger, paged.
func HandleListFuelTransactions(c *fiber.Ctx) error {
	tc := tenantcontext.GetTenantContext(c)
	page, perPage := pagingParams(c)
	repos := repository.GetGlobalFactory().GetRepositories()

	total, err := repos.FuelTransaction.CountByTenant(tc.TenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count fuel transactions"})
	}
	txs, err := repos.FuelTransaction.ListByTenant(tc.TenantID, (page-1)*perPage, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load fuel transactions"})
	}

	return c.JSON(fiber.Map{"data": txs, "page": page, "per_page": perPage, "total": total})
}

func pagingParams(c *fiber.Ctx) (page, perPage int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage = c.QueryInt("per_page", defaultPageSize)
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	return page, perPage
}
