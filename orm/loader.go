package orm

import (
	"github.com/goodbye-jack/go-tenancy/config"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/orm/dbconfig"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// InitRouter 总初始化入口：读取 tenancy 与 database 节点，构造Router并设为默认实例
func InitRouter(v *viper.Viper, dir *tenant.Directory, opts ...RouterOption) (*Router, error) {
	tc, err := config.LoadTenancy(v)
	if err != nil {
		return nil, err
	}
	strategy, err := tenant.ParseStrategy(tc.Strategy)
	if err != nil {
		return nil, err
	}
	base, err := dbconfig.LoadDBConfig(v, utils.ConfigNameDatabase)
	if err != nil {
		return nil, errors.Wrap(err, "【数据库初始化】加载数据库配置失败")
	}
	opts = append([]RouterOption{
		WithDirectory(dir),
		WithRowLevelColumn(tc.RowLevel.Column),
		WithRowLevelEnforcement(tc.RowLevel.Enforce),
	}, opts...)
	r, err := NewRouter(strategy, base, opts...)
	if err != nil {
		return nil, err
	}
	SetDefault(r)
	log.Infof("【数据库初始化】策略=%s 类型=%s，连接按需建立", strategy, base.DBType)
	return r, nil
}
