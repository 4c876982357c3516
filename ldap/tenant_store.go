package ldap

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/go-ldap/ldap/v3"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
)

// 租户ID直接拼进DN，只接受不需要转义的字符
var tenantIDRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// conn *ldap.Conn 中用到的部分
type conn interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
}

type dialFunc func(cfg Config) (conn, func(), error)

func dialAndBind(cfg Config) (conn, func(), error) {
	c, err := ldap.DialURL(cfg.url())
	if err != nil {
		return nil, nil, err
	}
	if err := c.Bind(cfg.BindDN, cfg.BindPassword); err != nil {
		c.Close()
		return nil, nil, err
	}
	return c, func() { c.Close() }, nil
}

// TenantStore 目录服务中的租户来源。每次操作单独建连
type TenantStore struct {
	cfg  Config
	dial dialFunc
}

func New(cfg Config) (*TenantStore, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := ldap.ParseDN(cfg.tenantsDN()); err != nil {
		return nil, errors.Wrapf(err, "invalid tenants dn %q", cfg.tenantsDN())
	}
	log.Infof("【LDAP初始化】地址：%s | 租户节点：%s", cfg.url(), cfg.tenantsDN())
	return &TenantStore{cfg: cfg, dial: dialAndBind}, nil
}

func (s *TenantStore) withConn(fn func(c conn) error) error {
	c, closeFn, err := s.dial(s.cfg)
	if err != nil {
		return errors.Wrap(err, "ldap connect")
	}
	defer closeFn()
	return fn(c)
}

func (s *TenantStore) tenantDN(id string) string {
	return fmt.Sprintf("%s=%s,%s", attrOU, id, s.cfg.tenantsDN())
}

func (s *TenantStore) attrs() []string {
	return []string{attrOU, s.cfg.NameAttr, s.cfg.PlanAttr, s.cfg.FeatureAttr, s.cfg.StatusAttr}
}

func (s *TenantStore) search(c conn, filter string, attrs []string) ([]*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		s.cfg.tenantsDN(),
		ldap.ScopeSingleLevel,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attrs,
		nil,
	)
	res, err := c.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, err
	}
	return res.Entries, nil
}

func tenantFilter(id string) string {
	return fmt.Sprintf("(&(objectClass=%s)(%s=%s))", objectClassOU, attrOU, ldap.EscapeFilter(id))
}

func (s *TenantStore) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	if !tenantIDRe.MatchString(id) {
		return tenant.Config{}, false, nil
	}
	var entry *ldap.Entry
	err := s.withConn(func(c conn) error {
		entries, err := s.search(c, tenantFilter(id), s.attrs())
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			entry = entries[0]
		}
		return nil
	})
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "ldap load tenant %s", id)
	}
	if entry == nil {
		return tenant.Config{}, false, nil
	}
	return s.entryToConfig(entry), true, nil
}

func (s *TenantStore) entryToConfig(entry *ldap.Entry) tenant.Config {
	return tenant.Config{
		Name:     entry.GetAttributeValue(s.cfg.NameAttr),
		Plan:     entry.GetAttributeValue(s.cfg.PlanAttr),
		Features: entry.GetAttributeValues(s.cfg.FeatureAttr),
		Status:   entry.GetAttributeValue(s.cfg.StatusAttr),
	}
}

func (s *TenantStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.withConn(func(c conn) error {
		entries, err := s.search(c, fmt.Sprintf("(objectClass=%s)", objectClassOU), []string{attrOU})
		if err != nil {
			return err
		}
		for _, e := range entries {
			if id := e.GetAttributeValue(attrOU); id != "" {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "ldap list tenants")
	}
	sort.Strings(ids)
	return ids, nil
}

// Save 不存在时新增条目，存在时替换映射属性
func (s *TenantStore) Save(ctx context.Context, id string, cfg tenant.Config) error {
	if !tenantIDRe.MatchString(id) {
		return LdapParamsError{Params: []string{"id"}}
	}
	values := map[string][]string{
		s.cfg.NameAttr:    nonEmpty(cfg.Name),
		s.cfg.PlanAttr:    {cfg.PlanOrDefault()},
		s.cfg.FeatureAttr: cfg.Features,
		s.cfg.StatusAttr:  nonEmpty(cfg.Status),
	}
	err := s.withConn(func(c conn) error {
		entries, err := s.search(c, tenantFilter(id), []string{attrOU})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			add := ldap.NewAddRequest(s.tenantDN(id), nil)
			add.Attribute("objectClass", []string{objectClassOU, objectClassExtended})
			add.Attribute(attrOU, []string{id})
			for _, attr := range sortedKeys(values) {
				if len(values[attr]) > 0 {
					add.Attribute(attr, values[attr])
				}
			}
			return c.Add(add)
		}
		mod := ldap.NewModifyRequest(entries[0].DN, nil)
		for _, attr := range sortedKeys(values) {
			mod.Replace(attr, values[attr])
		}
		return c.Modify(mod)
	})
	return errors.Wrapf(err, "ldap save tenant %s", id)
}

func (s *TenantStore) Delete(ctx context.Context, id string) error {
	if !tenantIDRe.MatchString(id) {
		return nil
	}
	err := s.withConn(func(c conn) error {
		err := c.Del(ldap.NewDelRequest(s.tenantDN(id), nil))
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil
		}
		return err
	})
	return errors.Wrapf(err, "ldap delete tenant %s", id)
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
