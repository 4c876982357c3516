package model

import (
	"time"

	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
)

// Tenant 租户注册表，数据库来源的loader和Provisioner共用
type Tenant struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:128" json:"name"`
	Plan      string    `gorm:"size:32" json:"plan"`
	Features  []string  `gorm:"serializer:json" json:"features"`
	Status    string    `gorm:"size:16;index;default:active" json:"status"`
	DSN       string    `gorm:"size:512" json:"-"`
	Database  string    `gorm:"size:128" json:"database,omitempty"`
	Schema    string    `gorm:"size:128" json:"schema,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string {
	return utils.TenantRegistryName
}

func (t Tenant) Config() tenant.Config {
	return tenant.Config{
		Name:     t.Name,
		Plan:     t.Plan,
		Features: append([]string(nil), t.Features...),
		Status:   t.Status,
		DSN:      t.DSN,
		Database: t.Database,
		Schema:   t.Schema,
	}
}

// FromConfig 反向转换，用于把静态配置里的租户写入注册表
func FromConfig(id string, cfg tenant.Config) Tenant {
	status := cfg.Status
	if status == "" {
		status = utils.TenantStatusActive
	}
	return Tenant{
		ID:       id,
		Name:     cfg.Name,
		Plan:     cfg.PlanOrDefault(),
		Features: append([]string(nil), cfg.Features...),
		Status:   status,
		DSN:      cfg.DSN,
		Database: cfg.Database,
		Schema:   cfg.Schema,
	}
}
