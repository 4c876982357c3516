package orm

import (
	"context"
	"sync"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/metrics"
	"github.com/goodbye-jack/go-tenancy/orm/dbconfig"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	sharedEngineKey = "__shared__"
	baseEngineKey   = "__base__"
)

var ErrSchemaUnsupported = errors.New("schema_per_tenant requires a postgres database")

// Router 按租户策略把当前请求路由到对应的数据库/schema/共享库
type Router struct {
	strategy tenant.Strategy
	base     *dbconfig.Config
	dir      *tenant.Directory

	dial       DialectorFunc
	gormConfig func(*dbconfig.Config) *gorm.Config
	column     string
	enforce    bool

	mu      sync.RWMutex
	engines map[string]*gorm.DB
	group   singleflight.Group
}

type RouterOption func(*Router)

// WithDirectory 租户配置里的 dsn/database/schema 覆盖默认推导
func WithDirectory(d *tenant.Directory) RouterOption {
	return func(r *Router) { r.dir = d }
}

func WithDialector(dial DialectorFunc) RouterOption {
	return func(r *Router) { r.dial = dial }
}

func WithGormConfig(fn func(*dbconfig.Config) *gorm.Config) RouterOption {
	return func(r *Router) { r.gormConfig = fn }
}

// WithRowLevelColumn 行级隔离使用的租户列，默认 tenant_id
func WithRowLevelColumn(column string) RouterOption {
	return func(r *Router) {
		if column != "" {
			r.column = column
		}
	}
}

// WithRowLevelEnforcement 行级策略下自动给查询/更新/删除加租户条件，写入时自动填充租户列
func WithRowLevelEnforcement(enforce bool) RouterOption {
	return func(r *Router) { r.enforce = enforce }
}

func NewRouter(strategy tenant.Strategy, base *dbconfig.Config, opts ...RouterOption) (*Router, error) {
	if !strategy.Valid() {
		return nil, errors.Wrapf(tenant.ErrUnsupportedStrategy, "%q", string(strategy))
	}
	if base == nil {
		return nil, errors.New("base database config is required")
	}
	r := &Router{
		strategy:   strategy,
		base:       base.Clone(),
		dial:       Dialector,
		gormConfig: defaultGormConfig,
		column:     utils.TenantColumnName,
		enforce:    true,
		engines:    map[string]*gorm.DB{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Router) Strategy() tenant.Strategy {
	return r.strategy
}

func (r *Router) Column() string {
	return r.column
}

func (r *Router) engineKey(id string) string {
	if r.strategy == tenant.DatabasePerTenant {
		return id
	}
	return sharedEngineKey
}

// Engine 返回租户对应的连接池，同一路由键只建一次
func (r *Router) Engine(ctx context.Context, id string) (*gorm.DB, error) {
	if id == "" {
		return nil, errors.WithStack(tenant.ErrNoTenantContext)
	}
	return r.engine(ctx, r.engineKey(id), func() (*dbconfig.Config, error) {
		return r.engineConfig(ctx, id)
	})
}

// BaseEngine 不属于任何租户的连接：独立库策略下是基础库，其余策略下是共享库
func (r *Router) BaseEngine(ctx context.Context) (*gorm.DB, error) {
	if r.strategy != tenant.DatabasePerTenant {
		return r.engine(ctx, sharedEngineKey, func() (*dbconfig.Config, error) {
			return r.base.WithSharedDefaults(), nil
		})
	}
	return r.engine(ctx, baseEngineKey, func() (*dbconfig.Config, error) {
		return r.base.WithSharedDefaults(), nil
	})
}

func (r *Router) lookupEngine(key string) (*gorm.DB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.engines[key]
	return db, ok
}

func (r *Router) engine(_ context.Context, key string, cfgFn func() (*dbconfig.Config, error)) (*gorm.DB, error) {
	if db, ok := r.lookupEngine(key); ok {
		return db, nil
	}
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		if db, ok := r.lookupEngine(key); ok {
			return db, nil
		}
		cfg, err := cfgFn()
		if err != nil {
			return nil, err
		}
		db, err := openEngine(cfg, r.dial, r.gormConfig, r.plugins()...)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.engines[key] = db
		r.mu.Unlock()
		metrics.OpenEngines.Inc()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*gorm.DB), nil
}

func (r *Router) plugins() []gorm.Plugin {
	if r.strategy == tenant.RowLevel && r.enforce {
		return []gorm.Plugin{NewTenantScopePlugin(r.column)}
	}
	return nil
}

// engineConfig 独立库：tenant_<id>（sqlite为同目录下的文件），租户配置可覆盖；共享库：基础配置
func (r *Router) engineConfig(ctx context.Context, id string) (*dbconfig.Config, error) {
	if r.strategy != tenant.DatabasePerTenant {
		return r.base.WithSharedDefaults(), nil
	}
	cfg := r.base.ForTenantDatabase(id)
	tc, err := r.tenantConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if tc.Database != "" {
		cfg.Database = tc.Database
	}
	if tc.DSN != "" {
		cfg.DSN = tc.DSN
	}
	return cfg, nil
}

// tenantConfig 未注入目录时使用 tenant.Default()
func (r *Router) tenantConfig(ctx context.Context, id string) (tenant.Config, error) {
	d := r.dir
	if d == nil {
		d = tenant.Default()
	}
	if d == nil {
		return tenant.Config{}, nil
	}
	return d.Config(ctx, id)
}

// SchemaName 租户schema名，默认 tenant_<id>
func (r *Router) SchemaName(ctx context.Context, id string) (string, error) {
	tc, err := r.tenantConfig(ctx, id)
	if err != nil {
		return "", err
	}
	if tc.Schema != "" {
		return tc.Schema, nil
	}
	return dbconfig.TenantStoreName(id), nil
}

// Session 为当前上下文中的租户打开一个会话，用完必须Close
func (r *Router) Session(ctx context.Context) (*Session, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	engine, err := r.Engine(ctx, id)
	if err != nil {
		return nil, err
	}
	db := engine.Session(&gorm.Session{Context: ctx}).
		Set(SettingTenantID, id).
		Session(&gorm.Session{})

	if r.strategy == tenant.SchemaPerTenant {
		return r.schemaSession(ctx, id, engine, db)
	}
	return newSession(id, db, nil), nil
}

// schemaSession 固定一条连接并设置search_path，Close时还原后归还连接池
func (r *Router) schemaSession(ctx context.Context, id string, engine, db *gorm.DB) (*Session, error) {
	if engine.Dialector.Name() != "postgres" {
		return nil, errors.Wrapf(ErrSchemaUnsupported, "got %s", engine.Dialector.Name())
	}
	schema, err := r.SchemaName(ctx, id)
	if err != nil {
		return nil, err
	}
	sqlDB, err := engine.DB()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}
	db.Statement.ConnPool = conn
	if err := db.Exec("SET search_path TO ?, public", clause.Table{Name: schema}).Error; err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "set search_path %s", schema)
	}
	release := func() error {
		_, err := conn.ExecContext(context.Background(), "RESET search_path")
		if cerr := conn.Close(); err == nil {
			err = cerr
		}
		return err
	}
	return newSession(id, db, release), nil
}

// Evict 关闭并移除某个租户的连接池（删库前调用）
func (r *Router) Evict(id string) error {
	key := r.engineKey(id)
	if key == sharedEngineKey {
		return nil
	}
	r.mu.Lock()
	db, ok := r.engines[key]
	delete(r.engines, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	metrics.OpenEngines.Dec()
	return closeEngine(db)
}

// OpenEngines 当前缓存的连接池数量
func (r *Router) OpenEngines() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// CloseAll 关闭并清空所有连接池（优雅退出/测试清理用），之后的会话会重新建连
func (r *Router) CloseAll() error {
	r.mu.Lock()
	engines := r.engines
	r.engines = map[string]*gorm.DB{}
	r.mu.Unlock()

	var errs []error
	for key, db := range engines {
		metrics.OpenEngines.Dec()
		if err := closeEngine(db); err != nil {
			log.Warnf("close engine %s: %v", key, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Errorf("close %d engine(s) failed, first: %v", len(errs), errs[0])
	}
	return nil
}
