package ldap

import (
	"fmt"
	"strings"
)

type LdapParamsError struct {
	Params []string
}

func (e LdapParamsError) Error() string {
	return fmt.Sprintf("params %+v error", e.Params)
}

const (
	defaultTenantOU    = "ou=tenants"
	defaultNameAttr    = "description"
	defaultPlanAttr    = "title"
	defaultFeatureAttr = "businessCategory"
	defaultStatusAttr  = "destinationIndicator"

	attrOU              = "ou"
	objectClassOU       = "organizationalUnit"
	objectClassExtended = "extensibleObject"
)

// Config tenancy.loader.ldap 节点。租户是 TenantOU 下的 organizationalUnit，ou 即租户ID
type Config struct {
	Addr         string `mapstructure:"addr"`
	BindDN       string `mapstructure:"bind_dn"`
	BindPassword string `mapstructure:"bind_password"`
	BaseDN       string `mapstructure:"base_dn"`
	TenantOU     string `mapstructure:"tenant_ou"`
	UseTLS       bool   `mapstructure:"use_tls"`

	// 属性映射
	NameAttr    string `mapstructure:"name_attr"`
	PlanAttr    string `mapstructure:"plan_attr"`
	FeatureAttr string `mapstructure:"feature_attr"`
	StatusAttr  string `mapstructure:"status_attr"`
}

func (cfg Config) withDefaults() Config {
	if cfg.TenantOU == "" {
		cfg.TenantOU = defaultTenantOU
	}
	if cfg.NameAttr == "" {
		cfg.NameAttr = defaultNameAttr
	}
	if cfg.PlanAttr == "" {
		cfg.PlanAttr = defaultPlanAttr
	}
	if cfg.FeatureAttr == "" {
		cfg.FeatureAttr = defaultFeatureAttr
	}
	if cfg.StatusAttr == "" {
		cfg.StatusAttr = defaultStatusAttr
	}
	return cfg
}

func (cfg Config) validate() error {
	missing := []string{}
	if cfg.Addr == "" {
		missing = append(missing, "addr")
	}
	if cfg.BindDN == "" {
		missing = append(missing, "bind_dn")
	}
	if cfg.BindPassword == "" {
		missing = append(missing, "bind_password")
	}
	if cfg.BaseDN == "" {
		missing = append(missing, "base_dn")
	}
	if len(missing) > 0 {
		return LdapParamsError{Params: missing}
	}
	return nil
}

func (cfg Config) url() string {
	addr := cfg.Addr
	if strings.Contains(addr, "://") {
		return addr
	}
	scheme := "ldap"
	if cfg.UseTLS {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s", scheme, addr)
}

func (cfg Config) tenantsDN() string {
	return normalizeDN(cfg.BaseDN, cfg.TenantOU)
}

func normalizeDN(baseDN, ou string) string {
	if ou == "" {
		return baseDN
	}
	if strings.Contains(ou, ",") {
		return ou
	}
	return fmt.Sprintf("%s,%s", ou, baseDN)
}
