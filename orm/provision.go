package orm

import (
	"context"
	"os"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/model"
	"github.com/goodbye-jack/go-tenancy/orm/dbconfig"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Provisioner 新租户开通：登记注册表、建库/建schema、初始化表结构
type Provisioner struct {
	router *Router
	dir    *tenant.Directory
}

func NewProvisioner(r *Router, dir *tenant.Directory) *Provisioner {
	return &Provisioner{router: r, dir: dir}
}

func (p *Provisioner) registry(ctx context.Context) (*gorm.DB, error) {
	db, err := p.router.BaseEngine(ctx)
	if err != nil {
		return nil, err
	}
	return db.WithContext(ctx), nil
}

// EnsureRegistry 建注册表（幂等）
func (p *Provisioner) EnsureRegistry(ctx context.Context) error {
	db, err := p.registry(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(db.AutoMigrate(&model.Tenant{}), "migrate tenant registry")
}

// Register 写入或更新注册表记录
func (p *Provisioner) Register(ctx context.Context, t *model.Tenant) error {
	if t == nil || t.ID == "" {
		return errors.New("tenant id is required")
	}
	if t.Status == "" {
		t.Status = utils.TenantStatusActive
	}
	if t.Plan == "" {
		t.Plan = utils.DefaultTenantPlan
	}
	db, err := p.registry(ctx)
	if err != nil {
		return err
	}
	return errors.Wrapf(db.Clauses(clause.OnConflict{UpdateAll: true}).Create(t).Error, "register tenant %s", t.ID)
}

// CreateStore 创建租户独立的存储；行级策略和sqlite无需操作
func (p *Provisioner) CreateStore(ctx context.Context, id string) error {
	switch p.router.strategy {
	case tenant.RowLevel:
		return nil
	case tenant.SchemaPerTenant:
		db, err := p.registry(ctx)
		if err != nil {
			return err
		}
		if db.Dialector.Name() != "postgres" {
			return errors.Wrapf(ErrSchemaUnsupported, "got %s", db.Dialector.Name())
		}
		schema, err := p.router.SchemaName(ctx, id)
		if err != nil {
			return err
		}
		return errors.Wrapf(db.Exec("CREATE SCHEMA IF NOT EXISTS ?", clause.Table{Name: schema}).Error, "create schema %s", schema)
	}

	cfg, managed, err := p.tenantDatabase(ctx, id)
	if err != nil || !managed || cfg.DBType.IsFileBased() {
		return err
	}
	name := cfg.Database
	db, err := p.registry(ctx)
	if err != nil {
		return err
	}
	switch cfg.DBType {
	case utils.DBTypeMySQL:
		err = db.Exec("CREATE DATABASE IF NOT EXISTS ?", clause.Table{Name: name}).Error
	case utils.DBTypePostgres:
		var n int64
		if err = db.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", name).Scan(&n).Error; err == nil && n == 0 {
			err = db.Exec("CREATE DATABASE ?", clause.Table{Name: name}).Error
		}
	case utils.DBTypeSqlserver:
		err = db.Exec("IF DB_ID(?) IS NULL EXEC('CREATE DATABASE ' + QUOTENAME(?))", name, name).Error
	default:
		err = errors.Errorf("unsupported db type: %s", cfg.DBType)
	}
	return errors.Wrapf(err, "create database %s", name)
}

// tenantDatabase 租户会话实际连接的库（含目录中的database覆盖）。
// 租户配置了独立DSN时，库不在基础实例上，不由这里建删
func (p *Provisioner) tenantDatabase(ctx context.Context, id string) (*dbconfig.Config, bool, error) {
	cfg, err := p.router.engineConfig(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if cfg.DSN != "" {
		log.WithTenant(id).Warnf("tenant %s uses its own dsn, store is managed externally", id)
		return cfg, false, nil
	}
	return cfg, true, nil
}

// DropStore 删除租户的schema或独立库
func (p *Provisioner) DropStore(ctx context.Context, id string) error {
	switch p.router.strategy {
	case tenant.RowLevel:
		return nil
	case tenant.SchemaPerTenant:
		db, err := p.registry(ctx)
		if err != nil {
			return err
		}
		schema, err := p.router.SchemaName(ctx, id)
		if err != nil {
			return err
		}
		return errors.Wrapf(db.Exec("DROP SCHEMA IF EXISTS ? CASCADE", clause.Table{Name: schema}).Error, "drop schema %s", schema)
	}

	if err := p.router.Evict(id); err != nil {
		log.WithTenant(id).Warnf("close tenant engine: %v", err)
	}
	cfg, managed, err := p.tenantDatabase(ctx, id)
	if err != nil || !managed {
		return err
	}
	if cfg.DBType.IsFileBased() {
		if err := os.Remove(cfg.Database); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", cfg.Database)
		}
		return nil
	}
	db, err := p.registry(ctx)
	if err != nil {
		return err
	}
	return errors.Wrapf(db.Exec("DROP DATABASE IF EXISTS ?", clause.Table{Name: cfg.Database}).Error, "drop database %s", cfg.Database)
}

// Initialize 开通租户：登记 -> 建存储 -> 迁移业务表 -> 刷新目录
func (p *Provisioner) Initialize(ctx context.Context, t *model.Tenant, models ...interface{}) error {
	if err := p.EnsureRegistry(ctx); err != nil {
		return err
	}
	if err := p.Register(ctx, t); err != nil {
		return err
	}
	if err := p.CreateStore(ctx, t.ID); err != nil {
		return err
	}
	if p.dir != nil {
		p.dir.Configure(t.ID, t.Config())
	}
	if len(models) > 0 {
		if err := p.router.Migrate(ctx, t.ID, AutoMigrateModels(models...)); err != nil {
			return errors.Wrapf(err, "migrate tenant %s", t.ID)
		}
	}
	log.WithTenant(t.ID).Infof("【租户开通】%s 完成", t.ID)
	return nil
}
