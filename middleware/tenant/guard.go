package tenant

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/tenant"
)

func contextMissing(err error) gin.H {
	return gin.H{
		"error":    "Tenant context missing",
		"message":  "This endpoint requires a tenant context",
		"solution": tenant.Suggestion(err),
	}
}

// RequireTenant 路由级守卫：没有绑定租户时返回400
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := tenant.Require(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, contextMissing(err))
			return
		}
		c.Next()
	}
}

// AllowTenants 路由级守卫：只允许列出的租户访问
func AllowTenants(ids ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	list := append([]string(nil), ids...)
	return func(c *gin.Context) {
		id, err := tenant.Require(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, contextMissing(err))
			return
		}
		if _, ok := allowed[id]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":            "Tenant not authorized",
				"message":          "Tenant '" + id + "' is not authorized for this endpoint",
				"requested_tenant": id,
				"allowed_tenants":  list,
				"solution":         "Use one of the allowed tenants for this endpoint",
			})
			return
		}
		c.Next()
	}
}
