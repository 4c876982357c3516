package loader

import (
	"context"
	"strings"

	"github.com/goodbye-jack/go-tenancy/config"
	"github.com/goodbye-jack/go-tenancy/ldap"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/orm/mongodb"
	"github.com/goodbye-jack/go-tenancy/orm/redis"
	"github.com/goodbye-jack/go-tenancy/storage/s3"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// 来源类型（tenancy.loader.type）
const (
	TypeNone     = "none"
	TypeStatic   = "static"
	TypeDatabase = "database"
	TypeAPI      = "api"
	TypeRedis    = "redis"
	TypeMongo    = "mongo"
	TypeS3       = "s3"
	TypeLDAP     = "ldap"
	TypeChain    = "chain"
)

const sectionPrefix = "tenancy.loader."

type factory struct {
	registry *gorm.DB
	closers  []func()
}

type FactoryOption func(*factory)

// WithRegistry database来源使用的注册表连接（通常是 Router.BaseEngine）
func WithRegistry(db *gorm.DB) FactoryOption {
	return func(f *factory) { f.registry = db }
}

// FromViper 按 tenancy.loader.type 构造外部来源。返回nil来源表示只用静态配置；cleanup 释放连接
func FromViper(ctx context.Context, v *viper.Viper, opts ...FactoryOption) (tenant.Source, func(), error) {
	t, err := config.LoadTenancy(v)
	if err != nil {
		return nil, func() {}, err
	}
	f := &factory{}
	for _, opt := range opts {
		opt(f)
	}
	cleanup := func() {
		for i := len(f.closers) - 1; i >= 0; i-- {
			f.closers[i]()
		}
	}

	typ := strings.ToLower(strings.TrimSpace(t.Loader.Type))
	var src tenant.Source
	if typ == TypeChain {
		var sources []tenant.Loader
		for _, name := range t.Loader.Chain {
			s, err := f.build(ctx, v, t.Loader, strings.ToLower(strings.TrimSpace(name)))
			if err != nil {
				cleanup()
				return nil, func() {}, err
			}
			if s != nil {
				sources = append(sources, s)
			}
		}
		src = NewChain(sources...)
	} else {
		src, err = f.build(ctx, v, t.Loader, typ)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
	}
	if src != nil {
		log.Infof("【租户来源】类型：%s", typ)
	}
	return src, cleanup, nil
}

func unmarshalSection(v *viper.Viper, name string, out interface{}) error {
	if err := v.UnmarshalKey(sectionPrefix+name, out); err != nil {
		return errors.Wrapf(err, "decode %s%s", sectionPrefix, name)
	}
	return nil
}

func (f *factory) build(ctx context.Context, v *viper.Viper, cfg config.Loader, typ string) (tenant.Source, error) {
	switch typ {
	case "", TypeNone:
		return nil, nil
	case TypeStatic:
		return StaticFromViper(v)
	case TypeDatabase:
		if f.registry == nil {
			return nil, errors.New("database tenant loader needs a registry connection")
		}
		return NewGorm(f.registry, IncludeInactive(cfg.IncludeInactive)), nil
	case TypeAPI:
		var c APIConfig
		if err := unmarshalSection(v, TypeAPI, &c); err != nil {
			return nil, err
		}
		return NewAPI(c)
	case TypeRedis:
		var c redis.Config
		if err := unmarshalSection(v, TypeRedis, &c); err != nil {
			return nil, err
		}
		s, err := redis.Open(ctx, c)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, func() { _ = s.Client().Close() })
		return s, nil
	case TypeMongo:
		var c mongodb.Config
		if err := unmarshalSection(v, TypeMongo, &c); err != nil {
			return nil, err
		}
		s, err := mongodb.Open(ctx, c)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, func() { _ = s.Close(context.Background()) })
		return s, nil
	case TypeS3:
		var c s3.Config
		if err := unmarshalSection(v, TypeS3, &c); err != nil {
			return nil, err
		}
		return s3.New(c)
	case TypeLDAP:
		var c ldap.Config
		if err := unmarshalSection(v, TypeLDAP, &c); err != nil {
			return nil, err
		}
		return ldap.New(c)
	}
	return nil, errors.Errorf("unknown tenant loader type %q", typ)
}

// NewDirectory 静态租户 + 配置的外部来源 + cache_ttl，并设为全局目录
func NewDirectory(ctx context.Context, v *viper.Viper, opts ...FactoryOption) (*tenant.Directory, func(), error) {
	t, err := config.LoadTenancy(v)
	if err != nil {
		return nil, func() {}, err
	}
	static, err := StaticFromViper(v)
	if err != nil {
		return nil, func() {}, err
	}
	src, cleanup, err := FromViper(ctx, v, opts...)
	if err != nil {
		return nil, cleanup, err
	}
	dirOpts := []tenant.Option{
		tenant.WithTenants(static.Tenants()),
		tenant.WithCacheTTL(t.CacheTTL),
	}
	if src != nil {
		dirOpts = append(dirOpts, tenant.WithSource(src))
	}
	dir := tenant.NewDirectory(dirOpts...)
	tenant.SetDefault(dir)
	return dir, cleanup, nil
}
