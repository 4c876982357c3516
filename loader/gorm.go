package loader

import (
	"context"

	"github.com/goodbye-jack/go-tenancy/model"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Gorm tenants注册表。默认只有 status=active 的租户可见
type Gorm struct {
	db              *gorm.DB
	includeInactive bool
}

type GormOption func(*Gorm)

func IncludeInactive(include bool) GormOption {
	return func(g *Gorm) { g.includeInactive = include }
}

func NewGorm(db *gorm.DB, opts ...GormOption) *Gorm {
	g := &Gorm{db: db}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gorm) query(ctx context.Context) *gorm.DB {
	q := g.db.WithContext(ctx).Model(&model.Tenant{})
	if !g.includeInactive {
		q = q.Where("status = ?", utils.TenantStatusActive)
	}
	return q
}

func (g *Gorm) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	var row model.Tenant
	err := g.query(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenant.Config{}, false, nil
	}
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "query tenant %s", id)
	}
	return row.Config(), true, nil
}

func (g *Gorm) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := g.query(ctx).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, errors.Wrap(err, "list tenants")
	}
	return ids, nil
}
