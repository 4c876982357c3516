package tenant

import (
	"net/http"
	"strings"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/utils"
)

// Resolver 从请求中提取租户标识，取不到返回空串
type Resolver interface {
	Resolve(r *http.Request) string
}

type ResolverFunc func(r *http.Request) string

func (f ResolverFunc) Resolve(r *http.Request) string {
	return f(r)
}

// HeaderResolver 默认解析器，读取 X-Tenant-ID（或自定义头）
func HeaderResolver(name string) Resolver {
	if name == "" {
		name = utils.TenantHeaderName
	}
	return ResolverFunc(func(r *http.Request) string {
		return r.Header.Get(name)
	})
}

// BearerResolver 从 Authorization: Bearer <jwt> 的 tenant_id claim 取租户
func BearerResolver(secret string) Resolver {
	return ResolverFunc(func(r *http.Request) string {
		auth := r.Header.Get("Authorization")
		if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
			return ""
		}
		id, err := utils.ParseTenantJWT(strings.TrimSpace(auth[7:]), secret)
		if err != nil {
			log.Debugf("bearer tenant token rejected: %v", err)
			return ""
		}
		return id
	})
}

// ContextResolver 读取上游认证中间件挂到ctx上的租户身份
func ContextResolver(key interface{}) Resolver {
	return ResolverFunc(func(r *http.Request) string {
		id, _ := r.Context().Value(key).(string)
		return id
	})
}

// ChainResolver 依次尝试，第一个非空结果生效
func ChainResolver(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(r *http.Request) string {
		for _, res := range resolvers {
			if id := res.Resolve(r); id != "" {
				return id
			}
		}
		return ""
	})
}
