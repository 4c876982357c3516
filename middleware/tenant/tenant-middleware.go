package tenant

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/metrics"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
)

// ErrorHandler 租户校验过程本身出错（loader不可用等）时的响应
type ErrorHandler func(id string, err error) (int, gin.H)

// Interceptor 识别请求租户，校验后绑定到本请求的tenant.Scope
type Interceptor struct {
	dir        *tenant.Directory
	headerName string
	resolver   Resolver
	exclude    []string
	validate   bool
	snapshot   map[string]struct{}
	onError    ErrorHandler
}

type Option func(*Interceptor)

func WithHeaderName(name string) Option {
	return func(i *Interceptor) {
		if name != "" {
			i.headerName = name
		}
	}
}

// WithResolver 替换默认的请求头解析
func WithResolver(r Resolver) Option {
	return func(i *Interceptor) { i.resolver = r }
}

func WithExcludePaths(paths ...string) Option {
	return func(i *Interceptor) { i.exclude = append([]string(nil), paths...) }
}

// AddExcludePaths 在当前列表上追加公共路径
func AddExcludePaths(paths ...string) Option {
	return func(i *Interceptor) { i.exclude = append(i.exclude, paths...) }
}

func WithValidation(validate bool) Option {
	return func(i *Interceptor) { i.validate = validate }
}

// WithSnapshot 覆盖构造时记录的已知租户集合
func WithSnapshot(ids ...string) Option {
	return func(i *Interceptor) {
		i.snapshot = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			i.snapshot[id] = struct{}{}
		}
	}
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(i *Interceptor) { i.onError = h }
}

// New dir 为空时使用 tenant.Default()
func New(dir *tenant.Directory, opts ...Option) *Interceptor {
	i := &Interceptor{
		dir:        dir,
		headerName: utils.TenantHeaderName,
		exclude:    append([]string(nil), utils.DefaultExcludePaths...),
		validate:   true,
		onError:    validationFailed,
	}
	if d := i.directory(); d != nil {
		i.snapshot = map[string]struct{}{}
		for _, id := range d.StaticIDs() {
			i.snapshot[id] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.resolver == nil {
		i.resolver = HeaderResolver(i.headerName)
	}
	return i
}

func (i *Interceptor) directory() *tenant.Directory {
	if i.dir != nil {
		return i.dir
	}
	return tenant.Default()
}

func (i *Interceptor) HeaderName() string {
	return i.headerName
}

// Exempt 公共路径：与前缀相等，或以 前缀+"/" 开头；"/" 只匹配根路径本身
func (i *Interceptor) Exempt(path string) bool {
	for _, p := range i.exclude {
		if path == p {
			return true
		}
		if p != "/" && strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

type rejection struct {
	status int
	body   gin.H
}

// bind 识别 -> 绑定 -> 校验。返回的ctx带有本请求独立的Scope，调用方负责Reset
func (i *Interceptor) bind(r *http.Request) (context.Context, *tenant.Scope, *rejection) {
	ctx := r.Context()
	id := strings.TrimSpace(i.resolver.Resolve(r))
	if id == "" {
		metrics.Requests.WithLabelValues("missing").Inc()
		return ctx, nil, i.missing()
	}

	// 先绑定再校验，错误响应和日志里能拿到租户
	ctx, scope := tenant.NewScope(ctx)
	scope.Set(id)

	if !i.validate {
		metrics.Requests.WithLabelValues("admitted").Inc()
		return ctx, scope, nil
	}
	ok, err := i.known(ctx, id)
	if err != nil {
		metrics.Requests.WithLabelValues("error").Inc()
		log.WithTenant(id).Errorf("tenant validation failed: %v", err)
		status, body := i.onError(id, err)
		return ctx, scope, &rejection{status: status, body: body}
	}
	if !ok {
		metrics.Requests.WithLabelValues("rejected").Inc()
		log.WithTenant(id).Warnf("rejected unknown tenant on %s %s", r.Method, r.URL.Path)
		return ctx, scope, i.invalid(ctx, id)
	}
	metrics.Requests.WithLabelValues("admitted").Inc()
	return ctx, scope, nil
}

// known 分层校验：构造时快照 -> 注入目录的静态配置 -> 全局目录的静态配置 -> 目录Exists（可能调用loader）
func (i *Interceptor) known(ctx context.Context, id string) (bool, error) {
	if _, ok := i.snapshot[id]; ok {
		return true, nil
	}
	if i.dir != nil && i.dir.HasStatic(id) {
		return true, nil
	}
	global := tenant.Default()
	if global != nil && global != i.dir && global.HasStatic(id) {
		return true, nil
	}
	d := i.directory()
	if d == nil {
		return false, nil
	}
	return d.Exists(ctx, id)
}

func (i *Interceptor) missing() *rejection {
	return &rejection{
		status: http.StatusBadRequest,
		body: gin.H{
			"error":    "Tenant identification required",
			"message":  "This endpoint requires tenant identification to access tenant-specific data",
			"solution": "Ensure your request provides a valid tenant identifier in the " + i.headerName + " header",
		},
	}
}

func (i *Interceptor) invalid(ctx context.Context, id string) *rejection {
	return &rejection{
		status: http.StatusForbidden,
		body: gin.H{
			"error":             "Invalid tenant",
			"message":           "The tenant '" + id + "' is not recognized or not authorized",
			"requested_tenant":  id,
			"available_tenants": Available(ctx, i.directory()),
			"solution":          "Use one of the available tenant IDs or contact support to register a new tenant",
		},
	}
}

func validationFailed(id string, err error) (int, gin.H) {
	return http.StatusInternalServerError, gin.H{
		"error":    "Tenant validation failed",
		"message":  "The tenant '" + id + "' could not be validated right now",
		"solution": tenant.Suggestion(err),
	}
}

// Available 目录中的租户列表（id/plan/features），按id排序；出错时返回空列表
func Available(ctx context.Context, d *tenant.Directory) []tenant.Summary {
	out := []tenant.Summary{}
	if d == nil {
		return out
	}
	ids, err := d.ListIDs(ctx)
	if err != nil {
		log.Warnf("list tenants: %v", err)
		return out
	}
	ids = append([]string(nil), ids...)
	sort.Strings(ids)
	for _, id := range ids {
		cfg, err := d.Config(ctx, id)
		if err != nil {
			log.WithTenant(id).Warnf("load tenant config: %v", err)
			continue
		}
		out = append(out, cfg.Summary(id))
	}
	return out
}

// Middleware gin中间件
func (i *Interceptor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if i.Exempt(c.Request.URL.Path) {
			metrics.Requests.WithLabelValues("exempt").Inc()
			c.Next()
			return
		}
		ctx, scope, rej := i.bind(c.Request)
		if scope != nil {
			defer scope.Reset()
		}
		if rej != nil {
			c.AbortWithStatusJSON(rej.status, rej.body)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Handler net/http 中间件（chi等路由使用）
func (i *Interceptor) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.Exempt(r.URL.Path) {
			metrics.Requests.WithLabelValues("exempt").Inc()
			next.ServeHTTP(w, r)
			return
		}
		ctx, scope, rej := i.bind(r)
		if scope != nil {
			defer scope.Reset()
		}
		if rej != nil {
			writeJSON(w, rej.status, rej.body)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, body gin.H) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := (render.JSON{Data: body}).Render(w); err != nil {
		log.Errorf("write tenant rejection: %v", err)
	}
}

// FromGin 当前请求绑定的租户
func FromGin(c *gin.Context) (string, bool) {
	return tenant.Get(c.Request.Context())
}
