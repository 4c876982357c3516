package tenant

import "context"

// Loader 从外部来源查询单个租户。found=false 表示租户不存在，不是错误。
type Loader interface {
	LoadTenant(ctx context.Context, id string) (cfg Config, found bool, err error)
}

// Lister 列出外部来源中的全部租户ID
type Lister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

type LoaderFunc func(ctx context.Context, id string) (Config, bool, error)

func (f LoaderFunc) LoadTenant(ctx context.Context, id string) (Config, bool, error) {
	return f(ctx, id)
}

type ListerFunc func(ctx context.Context) ([]string, error)

func (f ListerFunc) ListTenantIDs(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// Source 同时实现 Loader 和 Lister 的来源（redis、mongo、api等）
type Source interface {
	Loader
	Lister
}
