package orm

import (
	"context"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/orm/dbconfig"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
)

// DialectorFunc 根据连接配置构造gorm方言，测试时可替换成sqlmock
type DialectorFunc func(cfg *dbconfig.Config) (gorm.Dialector, error)

// Dialector 按db_type选择驱动
func Dialector(cfg *dbconfig.Config) (gorm.Dialector, error) {
	dsn, err := cfg.GenDSN()
	if err != nil {
		return nil, err
	}
	switch cfg.DBType {
	case utils.DBTypeMySQL:
		return mysql.Open(dsn), nil
	case utils.DBTypePostgres:
		return postgres.Open(dsn), nil
	case utils.DBTypeSqlserver:
		return sqlserver.Open(dsn), nil
	case utils.DBTypeSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, errors.Errorf("unsupported db type: %s", cfg.DBType)
}

// tenantLogFields 慢查询日志带上当前租户
func tenantLogFields(ctx context.Context) logrus.Fields {
	if id, ok := tenant.Get(ctx); ok {
		return logrus.Fields{"tenant_id": id}
	}
	return nil
}

func defaultGormConfig(cfg *dbconfig.Config) *gorm.Config {
	return &gorm.Config{
		Logger: log.NewSlowQueryLogger(cfg.SlowThreshold, cfg.GetLogMode(), tenantLogFields),
	}
}

// openEngine 建立连接池；gorm.Open 默认会Ping一次，连不上直接返回错误
func openEngine(cfg *dbconfig.Config, dial DialectorFunc, gormConfig func(*dbconfig.Config) *gorm.Config, plugins ...gorm.Plugin) (*gorm.DB, error) {
	dialector, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, gormConfig(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s %s", cfg.DBType, cfg.Database)
	}
	for _, p := range plugins {
		if err := db.Use(p); err != nil {
			discardEngine(db)
			return nil, errors.Wrapf(err, "register plugin %s", p.Name())
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		discardEngine(db)
		return nil, errors.WithStack(err)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.ConnMaxLifeTime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifeTime)
	}
	log.WithFields(logrus.Fields{"db_type": cfg.DBType, "database": cfg.Database}).Info("database engine opened")
	return db, nil
}

func closeEngine(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// discardEngine 打开后初始化失败的连接池直接关闭
func discardEngine(db *gorm.DB) {
	if err := closeEngine(db); err != nil {
		log.Warnf("close engine after failed init: %v", err)
	}
}
