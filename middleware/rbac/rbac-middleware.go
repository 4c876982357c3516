package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/rbac"
	"github.com/goodbye-jack/go-tenancy/tenant"
)

// PlanMiddleware 按租户套餐校验路由权限，须挂在租户中间件之后。
// 还没有分配套餐的租户按目录里的plan懒加载。
func PlanMiddleware(client *rbac.AccessClient, dir *tenant.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, err := tenant.Require(ctx)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":    "Tenant context missing",
				"message":  "This endpoint requires a tenant context",
				"solution": tenant.Suggestion(err),
			})
			return
		}

		plan, ok := client.PlanOf(id)
		if !ok && dir != nil {
			cfg, err := dir.Config(ctx, id)
			if err != nil {
				log.WithTenant(id).Errorf("PlanMiddleware/Config, %v", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			plan = cfg.PlanOrDefault()
			if err := client.AssignPlan(id, plan); err != nil {
				log.WithTenant(id).Errorf("PlanMiddleware/AssignPlan, %v", err)
			}
		}

		allowed, err := client.Enforce(id, c.Request.URL.Path, c.Request.Method)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":            "Tenant not authorized",
				"message":          "Plan '" + plan + "' does not include " + c.Request.Method + " " + c.Request.URL.Path,
				"requested_tenant": id,
				"plan":             plan,
				"solution":         "Upgrade the tenant plan or contact support",
			})
			return
		}
		c.Next()
	}
}
