package rbac

import (
	"context"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
)

// [request_definition]
// sub: tenant
// obj: path
// act: method
//
// [policy_definition]
// sub: plan
// obj: path (keyMatch2, 如 /api/reports/:id)
// act: method，* 表示全部
const text = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

type Policy interface {
	ToArr() []string
}

// PlanPolicy 某个套餐可以访问的路由
type PlanPolicy struct {
	Plan   string
	Path   string
	Method string
}

func NewPlanPolicy(plan, path, method string) Policy {
	return &PlanPolicy{Plan: plan, Path: path, Method: method}
}

func (p PlanPolicy) ToArr() []string {
	return []string{p.Plan, p.Path, p.Method}
}

// PlanAssignment 租户 -> 套餐
type PlanAssignment struct {
	Tenant string
	Plan   string
}

func (p *PlanAssignment) ToArr() []string {
	return []string{p.Tenant, p.Plan}
}

// AccessClient 基于套餐的路由授权，策略只保存在内存中
type AccessClient struct {
	e *casbin.SyncedEnforcer
}

func NewAccessClient(policies ...Policy) (*AccessClient, error) {
	m, err := model.NewModelFromString(text)
	if err != nil {
		return nil, errors.Wrap(err, "newModelFromString")
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "NewSyncedEnforcer")
	}
	c := &AccessClient{e: e}
	if err := c.AddPlanPolicies(policies); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AccessClient) AddPlanPolicies(policies []Policy) error {
	for _, p := range policies {
		if _, err := c.e.AddPolicy(p.ToArr()); err != nil {
			log.Errorf("AddPlanPolicies/AddPolicy(%v), %v", p.ToArr(), err)
			return errors.WithStack(err)
		}
	}
	return nil
}

// PlanOf 租户当前的套餐
func (c *AccessClient) PlanOf(tenantID string) (string, bool) {
	rules, err := c.e.GetFilteredGroupingPolicy(0, tenantID)
	if err != nil || len(rules) == 0 {
		return "", false
	}
	if len(rules) > 1 {
		log.Warnf("PlanOf(%s) result count %d", tenantID, len(rules))
	}
	return rules[0][1], true
}

// AssignPlan 覆盖租户的套餐
func (c *AccessClient) AssignPlan(tenantID, plan string) error {
	if current, ok := c.PlanOf(tenantID); ok && current == plan {
		return nil
	}
	if err := c.RemoveTenant(tenantID); err != nil {
		return err
	}
	pa := &PlanAssignment{Tenant: tenantID, Plan: plan}
	if _, err := c.e.AddGroupingPolicy(pa.ToArr()); err != nil {
		log.Errorf("AssignPlan/AddGroupingPolicy(%v), %v", pa.ToArr(), err)
		return errors.WithStack(err)
	}
	return nil
}

func (c *AccessClient) RemoveTenant(tenantID string) error {
	_, err := c.e.RemoveFilteredGroupingPolicy(0, tenantID)
	return errors.WithStack(err)
}

// SyncFromDirectory 把目录里每个租户的套餐同步进来
func (c *AccessClient) SyncFromDirectory(ctx context.Context, dir *tenant.Directory) error {
	ids, err := dir.ListIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		cfg, err := dir.Config(ctx, id)
		if err != nil {
			return err
		}
		if err := c.AssignPlan(id, cfg.PlanOrDefault()); err != nil {
			return err
		}
	}
	log.Infof("【套餐授权】同步了%d个租户", len(ids))
	return nil
}

func (c *AccessClient) Enforce(tenantID, path, method string) (bool, error) {
	ok, err := c.e.Enforce(tenantID, path, method)
	if err != nil {
		log.Errorf("Enforce(%s, %s, %s) error, %v", tenantID, path, method, err)
		return false, errors.WithStack(err)
	}
	log.Debugf("Enforce(%s, %s, %s) result, %v", tenantID, path, method, ok)
	return ok, nil
}
