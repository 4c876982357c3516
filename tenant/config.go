package tenant

import (
	"github.com/goodbye-jack/go-tenancy/utils"
)

// Config 单个租户的配置。固定字段之外的键进入Extra。
type Config struct {
	Name     string   `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Plan     string   `json:"plan,omitempty" yaml:"plan" mapstructure:"plan"`
	Features []string `json:"features,omitempty" yaml:"features" mapstructure:"features"`
	Status   string   `json:"status,omitempty" yaml:"status" mapstructure:"status"`
	// 连接覆盖：非空时替代按租户推导出的值
	DSN      string `json:"dsn,omitempty" yaml:"dsn" mapstructure:"dsn"`
	Database string `json:"database,omitempty" yaml:"database" mapstructure:"database"`
	Schema   string `json:"schema,omitempty" yaml:"schema" mapstructure:"schema"`

	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra" mapstructure:",remain"`
}

func (c Config) PlanOrDefault() string {
	if c.Plan == "" {
		return utils.DefaultTenantPlan
	}
	return c.Plan
}

func (c Config) Active() bool {
	return c.Status == "" || c.Status == utils.TenantStatusActive
}

func (c Config) HasFeature(name string) bool {
	for _, f := range c.Features {
		if f == name {
			return true
		}
	}
	return false
}

// IsZero 未知租户返回的空配置
func (c Config) IsZero() bool {
	return c.Name == "" && c.Plan == "" && len(c.Features) == 0 && c.Status == "" &&
		c.DSN == "" && c.Database == "" && c.Schema == "" && len(c.Extra) == 0
}

// Clone 深拷贝，目录内部保存的配置不会被调用方修改
func (c Config) Clone() Config {
	out := c
	if c.Features != nil {
		out.Features = append([]string(nil), c.Features...)
	}
	if c.Extra != nil {
		out.Extra = make(map[string]interface{}, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

// Summary 403响应中列出的可用租户条目
type Summary struct {
	ID       string   `json:"id"`
	Plan     string   `json:"plan"`
	Features []string `json:"features"`
}

func (c Config) Summary(id string) Summary {
	features := c.Features
	if features == nil {
		features = []string{}
	}
	return Summary{ID: id, Plan: c.PlanOrDefault(), Features: features}
}
