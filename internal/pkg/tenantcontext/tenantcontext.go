package tenantcontext

import (
	"github.com/gofiber/fiber/v2"
)

const (
	// KeyTenantContext is the fiber.Ctx locals key the API key middleware
	// fills and every tenant-scoped handler reads.
	KeyTenantContext = "TENANT_CONTEXT"
)

// TenantContext identifies the authenticated tenant for one request.
type TenantContext struct {
	TenantID   uint
	TenantName string
	Authorized bool
}

// GetTenantContext returns the request's tenant context, zero-valued when the
// request did not pass API key authentication.
func GetTenantContext(c *fiber.Ctx) TenantContext {
	if tc, ok := c.Locals(KeyTenantContext).(TenantContext); ok {
		return tc
	}
	return TenantContext{}
}

// SetTenantContext stores the tenant context on the request.
func SetTenantContext(c *fiber.Ctx, tc TenantContext) {
	c.Locals(KeyTenantContext, tc)
}
