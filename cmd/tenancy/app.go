package main

import (
	"context"

	"github.com/goodbye-jack/go-tenancy/config"
	"github.com/goodbye-jack/go-tenancy/loader"
	"github.com/goodbye-jack/go-tenancy/orm"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/spf13/viper"
)

type app struct {
	v       *viper.Viper
	tenancy config.Tenancy
	router  *orm.Router
	dir     *tenant.Directory
	cleanup func()
}

type opener func(ctx context.Context) (*app, error)

// newApp 配置 -> 会话路由 -> 租户目录。路由先于目录创建，数据库来源需要它的注册表连接
func newApp(ctx context.Context, configDirs ...string) (*app, error) {
	v, err := config.Load(configDirs...)
	if err != nil {
		return nil, err
	}
	tc, err := config.LoadTenancy(v)
	if err != nil {
		return nil, err
	}
	router, err := orm.InitRouter(v, nil)
	if err != nil {
		return nil, err
	}
	var opts []loader.FactoryOption
	if tc.Loader.Uses(loader.TypeDatabase) {
		registry, err := router.BaseEngine(ctx)
		if err != nil {
			_ = router.CloseAll()
			return nil, err
		}
		opts = append(opts, loader.WithRegistry(registry))
	}
	dir, cleanup, err := loader.NewDirectory(ctx, v, opts...)
	if err != nil {
		_ = router.CloseAll()
		return nil, err
	}
	return &app{v: v, tenancy: tc, router: router, dir: dir, cleanup: cleanup}, nil
}

func (a *app) Close() {
	a.cleanup()
	_ = a.router.CloseAll()
}
