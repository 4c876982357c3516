package tenant

import (
	"strings"

	"github.com/pkg/errors"
)

// Strategy 租户数据隔离方式
type Strategy string

const (
	DatabasePerTenant Strategy = "database_per_tenant"
	SchemaPerTenant   Strategy = "schema_per_tenant"
	RowLevel          Strategy = "row_level"
)

func (s Strategy) Valid() bool {
	switch s {
	case DatabasePerTenant, SchemaPerTenant, RowLevel:
		return true
	}
	return false
}

func (s Strategy) String() string {
	return string(s)
}

func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", errors.Wrapf(ErrUnsupportedStrategy, "%q", s)
	}
	return st, nil
}
