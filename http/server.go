package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goodbye-jack/go-tenancy/log"
	rbacmw "github.com/goodbye-jack/go-tenancy/middleware/rbac"
	tenantmw "github.com/goodbye-jack/go-tenancy/middleware/tenant"
	"github.com/goodbye-jack/go-tenancy/orm"
	"github.com/goodbye-jack/go-tenancy/rbac"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const shutdownTimeout = 10 * time.Second

// 始终公开的内置路径
var builtinPublicPaths = []string{"/health", "/ping", "/metrics"}

type HTTPServer struct {
	serviceName      string
	routes           []*Route
	router           *gin.Engine
	dir              *tenant.Directory
	sessions         *orm.Router
	access           *rbac.AccessClient
	tenantOpts       []tenantmw.Option
	extraMiddlewares []gin.HandlerFunc
	interceptor      *tenantmw.Interceptor
	prepareOnce      sync.Once
}

type ServerOption func(*HTTPServer)

// WithSessionRouter Run结束时关闭其全部连接
func WithSessionRouter(r *orm.Router) ServerOption {
	return func(s *HTTPServer) { s.sessions = r }
}

func WithAccessClient(c *rbac.AccessClient) ServerOption {
	return func(s *HTTPServer) { s.access = c }
}

// WithTenantOptions 透传给租户拦截器（请求头、校验开关、公共路径等）
func WithTenantOptions(opts ...tenantmw.Option) ServerOption {
	return func(s *HTTPServer) { s.tenantOpts = append(s.tenantOpts, opts...) }
}

func NewHTTPServer(serviceName string, dir *tenant.Directory, opts ...ServerOption) *HTTPServer {
	s := &HTTPServer{
		serviceName:      serviceName,
		router:           gin.New(),
		dir:              dir,
		extraMiddlewares: []gin.HandlerFunc{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes = []*Route{
		NewRoute("/ping", "健康检查", []string{"GET"}, func(c *gin.Context) {
			c.String(http.StatusOK, "Pong")
		}),
		NewRoute("/health", "健康检查", []string{"GET"}, func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.serviceName})
		}),
		NewRoute("/tenants", "可用租户列表", []string{"GET"}, func(c *gin.Context) {
			JsonResponse(c, tenantmw.Available(c.Request.Context(), s.directory()), nil)
		}, Public()),
	}
	return s
}

func (s *HTTPServer) directory() *tenant.Directory {
	if s.dir != nil {
		return s.dir
	}
	return tenant.Default()
}

func (s *HTTPServer) GetRoutes() []*Route {
	return s.routes
}

func (s *HTTPServer) RouteAPI(path string, tips string, methods []string, fn gin.HandlerFunc, opts ...RouteOption) {
	if len(methods) == 0 {
		methods = append(methods, "GET")
	}
	s.routes = append(s.routes, NewRoute(path, tips, methods, fn, opts...))
}

// Use 注册额外的全局中间件(将在 Prepare 时最先挂载)
func (s *HTTPServer) Use(middlewares ...gin.HandlerFunc) {
	s.extraMiddlewares = append(s.extraMiddlewares, middlewares...)
}

func (s *HTTPServer) publicPaths() []string {
	paths := append([]string(nil), builtinPublicPaths...)
	for _, route := range s.routes {
		if route.Public {
			paths = append(paths, route.Url)
		}
	}
	return paths
}

// Prepare 挂载中间件和路由，只执行一次
func (s *HTTPServer) Prepare() {
	s.prepareOnce.Do(s.prepare)
}

func (s *HTTPServer) prepare() {
	opts := append([]tenantmw.Option{}, s.tenantOpts...)
	opts = append(opts, tenantmw.AddExcludePaths(s.publicPaths()...))
	s.interceptor = tenantmw.New(s.dir, opts...)

	if len(s.extraMiddlewares) > 0 {
		s.router.Use(s.extraMiddlewares...)
	}
	s.router.Use(
		RecoveryMiddleware(),
		s.interceptor.Middleware(), // 租户识别
		AccessLogMiddleware(),
	)

	var planCheck gin.HandlerFunc
	if s.access != nil {
		planCheck = rbacmw.PlanMiddleware(s.access, s.directory())
	}
	for _, route := range s.routes {
		var extra []gin.HandlerFunc
		if route.Plans {
			if planCheck == nil {
				log.Fatalf("route %s uses plan policy but no access client is configured", route.Url)
			}
			extra = append(extra, planCheck)
		}
		handlers := route.GetHandlersChain(extra...)
		for _, method := range route.Methods {
			s.router.Handle(method, route.Url, handlers...)
		}
	}
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler 已挂载好的gin引擎（测试或嵌入到其他server）
func (s *HTTPServer) Handler() http.Handler {
	s.Prepare()
	return s.router
}

func (s *HTTPServer) Interceptor() *tenantmw.Interceptor {
	s.Prepare()
	return s.interceptor
}

// Run 阻塞直到ctx取消，随后优雅关闭并释放所有租户数据库连接
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("【HTTP服务】%s is running on %s", s.serviceName, addr)
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = errors.Wrap(err, "http server")
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = errors.Wrap(err, "http shutdown")
		}
		log.Infof("【HTTP服务】%s stopped", s.serviceName)
	}
	if s.sessions != nil {
		if err := s.sessions.CloseAll(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
