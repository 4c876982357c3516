package http

import (
	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/log"
	tenantmw "github.com/goodbye-jack/go-tenancy/middleware/tenant"
)

type Route struct {
	Tips        string   // 路由说明
	Url         string   // 路由路径
	Methods     []string // HTTP方法(GET,POST等)
	Public      bool     // 无需租户标识
	Plans       bool     // 按套餐鉴权
	handlerFunc gin.HandlerFunc
	middlewares []gin.HandlerFunc
}

type RouteOption func(*Route)

// Public 加入拦截器的公共路径
func Public() RouteOption {
	return func(r *Route) { r.Public = true }
}

// Tenants 只允许列出的租户访问
func Tenants(ids ...string) RouteOption {
	return func(r *Route) { r.AddMiddleware(tenantmw.AllowTenants(ids...)) }
}

// Plans 按租户套餐的casbin策略鉴权，需要 WithAccessClient
func Plans() RouteOption {
	return func(r *Route) { r.Plans = true }
}

// RequireTenant 处理器必须拿到租户上下文（对Public路由有意义）
func RequireTenant() RouteOption {
	return func(r *Route) { r.AddMiddleware(tenantmw.RequireTenant()) }
}

func NewRoute(url string, tips string, methods []string, handlerFunc gin.HandlerFunc, opts ...RouteOption) *Route {
	if len(methods) == 0 {
		log.Fatal("NewRoute methods is empty")
	}
	r := &Route{
		Tips:        tips,
		Url:         url,
		Methods:     methods,
		handlerFunc: handlerFunc,
		middlewares: []gin.HandlerFunc{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddMiddleware 添加中间件到路由
func (r *Route) AddMiddleware(middleware gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, middleware)
}

// GetHandlersChain 获取完整处理链(中间件+主处理函数)
func (r *Route) GetHandlersChain(extra ...gin.HandlerFunc) []gin.HandlerFunc {
	handlers := make([]gin.HandlerFunc, 0, len(extra)+len(r.middlewares)+1)
	handlers = append(handlers, extra...)
	handlers = append(handlers, r.middlewares...)
	handlers = append(handlers, r.handlerFunc)
	return handlers
}
