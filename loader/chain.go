package loader

import (
	"context"
	"sort"

	"github.com/goodbye-jack/go-tenancy/tenant"
)

// Chain 依次询问各来源，第一个找到的生效；任一来源出错立即返回
type Chain struct {
	sources []tenant.Loader
}

func NewChain(sources ...tenant.Loader) *Chain {
	return &Chain{sources: sources}
}

func (c *Chain) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	for _, s := range c.sources {
		cfg, ok, err := s.LoadTenant(ctx, id)
		if err != nil {
			return tenant.Config{}, false, err
		}
		if ok {
			return cfg, true, nil
		}
	}
	return tenant.Config{}, false, nil
}

// ListTenantIDs 所有实现了Lister的来源的并集
func (c *Chain) ListTenantIDs(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	for _, s := range c.sources {
		l, ok := s.(tenant.Lister)
		if !ok {
			continue
		}
		ids, err := l.ListTenantIDs(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
