package loader

import (
	"context"
	"sort"

	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Static 配置文件 tenants: 节点中的租户
type Static struct {
	tenants map[string]tenant.Config
}

func NewStatic(tenants map[string]tenant.Config) *Static {
	s := &Static{tenants: make(map[string]tenant.Config, len(tenants))}
	for id, cfg := range tenants {
		s.tenants[id] = cfg.Clone()
	}
	return s
}

// StaticFromViper 解析 tenants: 节点，未配置时返回空来源
func StaticFromViper(v *viper.Viper) (*Static, error) {
	tenants := map[string]tenant.Config{}
	if v.IsSet(utils.ConfigNameTenants) {
		if err := v.UnmarshalKey(utils.ConfigNameTenants, &tenants); err != nil {
			return nil, errors.Wrap(err, "decode tenants config")
		}
	}
	return NewStatic(tenants), nil
}

// Tenants 供 tenant.WithTenants 使用的副本
func (s *Static) Tenants() map[string]tenant.Config {
	out := make(map[string]tenant.Config, len(s.tenants))
	for id, cfg := range s.tenants {
		out[id] = cfg.Clone()
	}
	return out
}

func (s *Static) LoadTenant(_ context.Context, id string) (tenant.Config, bool, error) {
	cfg, ok := s.tenants[id]
	if !ok {
		return tenant.Config{}, false, nil
	}
	return cfg.Clone(), true, nil
}

func (s *Static) ListTenantIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
