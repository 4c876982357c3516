package tenant

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/metrics"
	"github.com/goodbye-jack/go-tenancy/utils"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	exists bool
	cfg    Config
}

// Directory 租户ID到租户配置的映射：静态配置 + 可选外部loader + TTL缓存
type Directory struct {
	mu     sync.RWMutex
	static map[string]Config

	loader Loader
	lister Lister

	ttl     time.Duration
	janitor time.Duration
	cache   *gocache.Cache
	group   singleflight.Group
}

type Option func(*Directory)

func WithTenants(tenants map[string]Config) Option {
	return func(d *Directory) {
		for id, cfg := range tenants {
			d.static[id] = cfg.Clone()
		}
	}
}

func WithLoader(l Loader) Option {
	return func(d *Directory) { d.loader = l }
}

func WithLister(l Lister) Option {
	return func(d *Directory) { d.lister = l }
}

// WithSource 同时设置loader和lister
func WithSource(s Source) Option {
	return func(d *Directory) {
		d.loader = s
		d.lister = s
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithCacheJanitor 后台定期清理过期条目，默认关闭（过期条目在读取时判定失效）
func WithCacheJanitor(interval time.Duration) Option {
	return func(d *Directory) { d.janitor = interval }
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		static: map[string]Config{},
		ttl:    utils.DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = gocache.New(d.ttl, d.janitor)
	for id, cfg := range d.static {
		d.cache.Set(id, entry{exists: true, cfg: cfg}, d.ttl)
	}
	return d
}

func (d *Directory) TTL() time.Duration {
	return d.ttl
}

// Configure 新增或覆盖租户配置，并刷新其缓存时间
func (d *Directory) Configure(id string, cfg Config) {
	cfg = cfg.Clone()
	d.mu.Lock()
	d.static[id] = cfg
	d.mu.Unlock()
	d.cache.Set(id, entry{exists: true, cfg: cfg}, d.ttl)
}

// Remove 从静态配置中删除租户并清除缓存
func (d *Directory) Remove(id string) {
	d.mu.Lock()
	delete(d.static, id)
	d.mu.Unlock()
	d.cache.Delete(id)
}

// Exists 先查缓存；未命中或过期时调用loader（存在/不存在都缓存），没有loader时只查静态配置
func (d *Directory) Exists(ctx context.Context, id string) (bool, error) {
	e, err := d.lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return e.exists, nil
}

// Config 返回租户配置；未知租户返回空配置。
// 静态配置（含Configure写入的）直接返回，不受缓存过期和loader结果影响；其余租户先经Exists校验，返回loader加载的配置
func (d *Directory) Config(ctx context.Context, id string) (Config, error) {
	d.mu.RLock()
	cfg, ok := d.static[id]
	d.mu.RUnlock()
	if ok {
		return cfg.Clone(), nil
	}
	e, err := d.lookup(ctx, id)
	if err != nil {
		return Config{}, err
	}
	if !e.exists {
		return Config{}, nil
	}
	return e.cfg.Clone(), nil
}

func (d *Directory) lookup(ctx context.Context, id string) (entry, error) {
	if v, ok := d.cache.Get(id); ok {
		metrics.DirectoryLookups.WithLabelValues("hit").Inc()
		return v.(entry), nil
	}
	metrics.DirectoryLookups.WithLabelValues("miss").Inc()
	if d.loader == nil {
		d.mu.RLock()
		cfg, ok := d.static[id]
		d.mu.RUnlock()
		return entry{exists: ok, cfg: cfg}, nil
	}
	v, err, _ := d.group.Do(id, func() (interface{}, error) {
		if v, ok := d.cache.Get(id); ok {
			return v.(entry), nil
		}
		cfg, found, err := d.loader.LoadTenant(ctx, id)
		if err != nil {
			metrics.LoaderCalls.WithLabelValues("error").Inc()
			log.WithTenant(id).Warnf("tenant loader failed: %v", err)
			return nil, LoaderError(id, err)
		}
		if !found {
			metrics.LoaderCalls.WithLabelValues("absent").Inc()
			e := entry{exists: false}
			d.cache.Set(id, e, d.ttl)
			return e, nil
		}
		metrics.LoaderCalls.WithLabelValues("found").Inc()
		log.WithTenant(id).Debug("tenant loaded")
		e := entry{exists: true, cfg: cfg.Clone()}
		d.cache.Set(id, e, d.ttl)
		return e, nil
	})
	if err != nil {
		return entry{}, err
	}
	return v.(entry), nil
}

// ListIDs 有lister时每次调用都重新查询，否则返回排好序的静态租户ID
func (d *Directory) ListIDs(ctx context.Context) ([]string, error) {
	if d.lister != nil {
		ids, err := d.lister.ListTenantIDs(ctx)
		if err != nil {
			return nil, LoaderError("", err)
		}
		return ids, nil
	}
	return d.StaticIDs(), nil
}

func (d *Directory) StaticIDs() []string {
	d.mu.RLock()
	ids := make([]string, 0, len(d.static))
	for id := range d.static {
		ids = append(ids, id)
	}
	d.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (d *Directory) HasStatic(id string) bool {
	d.mu.RLock()
	_, ok := d.static[id]
	d.mu.RUnlock()
	return ok
}

// Invalidate 租户变更后手动清除缓存
func (d *Directory) Invalidate(id string) {
	d.cache.Delete(id)
}

func (d *Directory) Flush() {
	d.cache.Flush()
}

var defaultDirectory atomic.Pointer[Directory]

// SetDefault 设置进程级默认目录（便捷接线用，业务代码应显式注入Directory）
func SetDefault(d *Directory) {
	defaultDirectory.Store(d)
}

func Default() *Directory {
	return defaultDirectory.Load()
}
