package utils

import (
	"context"

	"github.com/gin-gonic/gin"
)

type identityKey string

// TenantIdentityKey 认证中间件挂载租户身份时使用的ctx key
const TenantIdentityKey identityKey = TenantContextName

// SetTenantIdentity 由认证中间件调用，把已认证的租户身份挂到请求ctx上
func SetTenantIdentity(c *gin.Context, tenantID string) {
	ctx := context.WithValue(c.Request.Context(), TenantIdentityKey, tenantID)
	c.Request = c.Request.WithContext(ctx)
}

// GetTenantIdentity 读取认证中间件挂载的租户身份
func GetTenantIdentity(ctx context.Context) string {
	id, _ := ctx.Value(TenantIdentityKey).(string)
	return id
}
