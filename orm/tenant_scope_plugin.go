package orm

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	// SettingTenantID 会话级设置，Router.Session写入
	SettingTenantID = "tenancy:tenant_id"

	scopedMarker = "tenancy:scoped"
)

var ErrCrossTenantWrite = errors.New("row belongs to another tenant")

// TenantScopePlugin 行级隔离：查询/更新/删除自动追加 <column> = 当前租户，创建时自动填充租户列。
// 只对带租户列的模型生效；Raw/Exec 写的SQL不做改写。
type TenantScopePlugin struct {
	Column string
}

func NewTenantScopePlugin(column string) *TenantScopePlugin {
	return &TenantScopePlugin{Column: column}
}

func (p *TenantScopePlugin) Name() string {
	return "tenancy:tenant_scope"
}

func (p *TenantScopePlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("tenancy:assign_tenant", p.assignTenant); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("tenancy:scope_query", p.scope); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenancy:scope_row", p.scope); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenancy:scope_update", p.scope); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenancy:scope_delete", p.scope)
}

func (p *TenantScopePlugin) tenantOf(db *gorm.DB) (string, bool) {
	v, ok := db.Get(SettingTenantID)
	if !ok {
		return "", false
	}
	id, _ := v.(string)
	return id, id != ""
}

func (p *TenantScopePlugin) field(stmt *gorm.Statement) *schema.Field {
	if stmt.Schema == nil {
		return nil
	}
	return stmt.Schema.LookUpField(p.Column)
}

func (p *TenantScopePlugin) scope(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	id, ok := p.tenantOf(db)
	if !ok {
		return
	}
	stmt := db.Statement
	f := p.field(stmt)
	if f == nil {
		return
	}
	// 同一个statement被链式复用时（先Count再Find）只加一次。
	// 标记记录的是statement本身：Preload等关联查询会继承父查询的Settings，但statement不同，仍需加条件
	if v, done := stmt.Settings.Load(scopedMarker); done && v == stmt {
		return
	}
	stmt.Settings.Store(scopedMarker, stmt)
	addTenantCondition(stmt, f.DBName, id)
}

func tenantCondition(column, id string) clause.Expression {
	return clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Value: id}
}

// addTenantCondition 已有的where条件整体作为一组，再AND上租户条件，避免OR把租户条件绕开
func addTenantCondition(stmt *gorm.Statement, column, id string) {
	cond := tenantCondition(column, id)
	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			where.Exprs = []clause.Expression{clause.And(where.Exprs...), cond}
			c.Expression = where
			stmt.Clauses["WHERE"] = c
			return
		}
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{cond}})
}

func (p *TenantScopePlugin) assignTenant(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	id, ok := p.tenantOf(db)
	if !ok {
		return
	}
	stmt := db.Statement
	f := p.field(stmt)
	if f == nil {
		return
	}

	if m, ok := stmt.Dest.(map[string]interface{}); ok {
		if _, has := m[f.DBName]; !has {
			if _, has := m[f.Name]; !has {
				m[f.DBName] = id
			}
		}
	} else {
		rv := stmt.ReflectValue
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				p.assignRow(db, f, reflect.Indirect(rv.Index(i)), id)
			}
		case reflect.Struct:
			p.assignRow(db, f, rv, id)
		}
	}

	// Save 未命中时会退化成 INSERT ... ON CONFLICT DO UPDATE，更新分支同样只允许改本租户的行
	if c, ok := stmt.Clauses["ON CONFLICT"]; ok {
		if oc, ok := c.Expression.(clause.OnConflict); ok && (oc.UpdateAll || len(oc.DoUpdates) > 0) {
			oc.Where.Exprs = append(oc.Where.Exprs, tenantCondition(f.DBName, id))
			c.Expression = oc
			stmt.Clauses["ON CONFLICT"] = c
		}
	}
}

func (p *TenantScopePlugin) assignRow(db *gorm.DB, f *schema.Field, rv reflect.Value, id string) {
	if rv.Kind() != reflect.Struct {
		return
	}
	cur, zero := f.ValueOf(db.Statement.Context, rv)
	if zero {
		if err := f.Set(db.Statement.Context, rv, id); err != nil {
			_ = db.AddError(errors.Wrapf(err, "set %s", f.DBName))
		}
		return
	}
	if fmt.Sprint(cur) != id {
		_ = db.AddError(errors.Wrapf(ErrCrossTenantWrite, "%s=%v, session tenant %s", f.DBName, cur, id))
	}
}
