package redis

import (
	"context"
	"sort"
	"strings"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// 固定字段之外的hash字段进入 tenant.Config.Extra
const (
	fieldName     = "name"
	fieldPlan     = "plan"
	fieldFeatures = "features" // 逗号分隔
	fieldStatus   = "status"
	fieldDSN      = "dsn"
	fieldDatabase = "database"
	fieldSchema   = "schema"
)

// TenantStore 租户配置存在 <prefix>:tenant:<id> 的hash里，所有id在集合 <prefix>:tenants
type TenantStore struct {
	client redis.UniversalClient
	prefix string
}

func NewTenantStore(client redis.UniversalClient, prefix string) *TenantStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &TenantStore{client: client, prefix: prefix}
}

// Open 按配置建立连接并Ping
func Open(ctx context.Context, cfg Config) (*TenantStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "redis ping %s", cfg.Addr)
	}
	log.Infof("【Redis初始化】地址：%s | DB：%d", cfg.Addr, cfg.DB)
	return NewTenantStore(client, cfg.Prefix), nil
}

func (s *TenantStore) Client() redis.UniversalClient {
	return s.client
}

func (s *TenantStore) tenantKey(id string) string {
	return s.prefix + ":tenant:" + id
}

func (s *TenantStore) setKey() string {
	return s.prefix + ":tenants"
}

func (s *TenantStore) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.tenantKey(id)).Result()
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "redis hgetall %s", id)
	}
	if len(fields) == 0 {
		return tenant.Config{}, false, nil
	}
	return decode(fields), true, nil
}

func (s *TenantStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.setKey()).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis smembers")
	}
	sort.Strings(ids)
	return ids, nil
}

// Save 覆盖写入租户配置
func (s *TenantStore) Save(ctx context.Context, id string, cfg tenant.Config) error {
	key := s.tenantKey(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encode(cfg))
		pipe.SAdd(ctx, s.setKey(), id)
		return nil
	})
	return errors.Wrapf(err, "redis save tenant %s", id)
}

func (s *TenantStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.tenantKey(id))
		pipe.SRem(ctx, s.setKey(), id)
		return nil
	})
	return errors.Wrapf(err, "redis delete tenant %s", id)
}

func encode(cfg tenant.Config) map[string]interface{} {
	values := map[string]interface{}{
		fieldPlan: cfg.PlanOrDefault(),
	}
	set := func(k, v string) {
		if v != "" {
			values[k] = v
		}
	}
	set(fieldName, cfg.Name)
	set(fieldFeatures, strings.Join(cfg.Features, ","))
	set(fieldStatus, cfg.Status)
	set(fieldDSN, cfg.DSN)
	set(fieldDatabase, cfg.Database)
	set(fieldSchema, cfg.Schema)
	for k, v := range cfg.Extra {
		if _, taken := values[k]; !taken {
			values[k] = v
		}
	}
	return values
}

func decode(fields map[string]string) tenant.Config {
	cfg := tenant.Config{}
	for k, v := range fields {
		switch k {
		case fieldName:
			cfg.Name = v
		case fieldPlan:
			cfg.Plan = v
		case fieldFeatures:
			for _, f := range strings.Split(v, ",") {
				if f = strings.TrimSpace(f); f != "" {
					cfg.Features = append(cfg.Features, f)
				}
			}
		case fieldStatus:
			cfg.Status = v
		case fieldDSN:
			cfg.DSN = v
		case fieldDatabase:
			cfg.Database = v
		case fieldSchema:
			cfg.Schema = v
		default:
			if cfg.Extra == nil {
				cfg.Extra = map[string]interface{}{}
			}
			cfg.Extra[k] = v
		}
	}
	return cfg
}
