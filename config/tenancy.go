package config

import (
	"strings"
	"time"

	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Tenancy 多租户配置（对应yaml中的tenancy节点）
type Tenancy struct {
	Strategy     string        `mapstructure:"strategy"`
	HeaderName   string        `mapstructure:"header_name"`
	ExcludePaths []string      `mapstructure:"exclude_paths"`
	Validate     bool          `mapstructure:"validate"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	RowLevel     RowLevel      `mapstructure:"row_level"`
	Loader       Loader        `mapstructure:"loader"`
}

type RowLevel struct {
	Column  string `mapstructure:"column"`
	Enforce bool   `mapstructure:"enforce"`
}

// Loader 租户来源；各来源的连接参数在 tenancy.loader.<type> 下，由loader包自行解析
type Loader struct {
	Type            string   `mapstructure:"type"`
	Chain           []string `mapstructure:"chain"`
	IncludeInactive bool     `mapstructure:"include_inactive"`
}

// LoadTenancy 解析tenancy节点。用Unmarshal而不是UnmarshalKey：后者拿到的是单一来源的整块map，默认值不会合并进来
func LoadTenancy(v *viper.Viper) (Tenancy, error) {
	setDefaults(v)
	var wrapper struct {
		Tenancy Tenancy `mapstructure:"tenancy"`
	}
	if err := v.Unmarshal(&wrapper); err != nil {
		return Tenancy{}, errors.Wrap(err, "decode tenancy config")
	}
	t := wrapper.Tenancy
	if t.HeaderName == "" {
		t.HeaderName = utils.TenantHeaderName
	}
	if t.CacheTTL <= 0 {
		t.CacheTTL = utils.DefaultCacheTTL
	}
	if t.RowLevel.Column == "" {
		t.RowLevel.Column = utils.TenantColumnName
	}
	t.Loader.Type = normalizeLoaderType(t.Loader.Type)
	for i, name := range t.Loader.Chain {
		t.Loader.Chain[i] = normalizeLoaderType(name)
	}
	if t.JWTSecret == "" {
		t.JWTSecret = utils.JWTSecret
	}
	return t, nil
}

func normalizeLoaderType(typ string) string {
	return strings.ToLower(strings.TrimSpace(typ))
}

// Uses 来源类型为typ，或chain中包含typ
func (l Loader) Uses(typ string) bool {
	if l.Type == typ {
		return true
	}
	if l.Type != "chain" {
		return false
	}
	for _, name := range l.Chain {
		if name == typ {
			return true
		}
	}
	return false
}
