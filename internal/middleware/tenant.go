package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nightpass/internal/errors"
	"nightpass/internal/logger"
	"nightpass/internal/models"
)

type TenantResolver interface {
	Resolve(ctx context.Context, slug string) (*models.Tenant, error)
}

// Tenant resolves the :tenant path parameter of landing routes. Unknown and
// inactive tenants answer 404.
func Tenant(tenants TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := tenants.Resolve(c.Request.Context(), c.Param("tenant"))
		if err != nil {
			status, msg := apperrors.Sanitize(err)
			if status == http.StatusInternalServerError {
				logger.WithContext(c.Request.Context()).Error("Failed to resolve tenant", "error", err)
			}
			abort(c, status, msg)
			return
		}
		if !t.IsActive {
			abort(c, http.StatusNotFound, "tenant not found")
			return
		}

		c.Set(tenantSlugKey, t.Slug)
		setTenant(c, t.ID)
		c.Next()
	}
}
