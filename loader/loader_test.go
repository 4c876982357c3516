package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodbye-jack/go-tenancy/config"
	"github.com/goodbye-jack/go-tenancy/model"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func staticConfig() map[string]interface{} {
	return map[string]interface{}{
		"tenants": map[string]interface{}{
			"alpha": map[string]interface{}{"plan": "premium", "features": []string{"reports"}, "region": "eu"},
			"beta":  map[string]interface{}{"name": "Beta"},
		},
	}
}

func TestStaticFromViper(t *testing.T) {
	s, err := StaticFromViper(config.FromMap(staticConfig()))
	require.NoError(t, err)
	ctx := context.Background()

	cfg, ok, err := s.LoadTenant(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "premium", cfg.Plan)
	assert.Equal(t, []string{"reports"}, cfg.Features)
	assert.Equal(t, "eu", cfg.Extra["region"])

	_, ok, _ = s.LoadTenant(ctx, "gamma")
	assert.False(t, ok)

	ids, err := s.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	empty, err := StaticFromViper(config.FromMap(nil))
	require.NoError(t, err)
	ids, _ = empty.ListTenantIDs(ctx)
	assert.Empty(t, ids)
}

func registryDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "registry.db")), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Tenant{}))
	rows := []model.Tenant{
		{ID: "alpha", Plan: "premium", Status: "active", Features: []string{"reports"}},
		{ID: "beta", Plan: "basic", Status: "active"},
		{ID: "omega", Plan: "basic", Status: "suspended"},
	}
	require.NoError(t, db.Create(&rows).Error)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormLoader(t *testing.T) {
	db := registryDB(t)
	ctx := context.Background()

	g := NewGorm(db)
	cfg, ok, err := g.LoadTenant(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "premium", cfg.Plan)
	assert.Equal(t, []string{"reports"}, cfg.Features)

	_, ok, err = g.LoadTenant(ctx, "omega")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := g.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	all := NewGorm(db, IncludeInactive(true))
	cfg, ok, err = all.LoadTenant(ctx, "omega")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "suspended", cfg.Status)
	ids, _ = all.ListTenantIDs(ctx)
	assert.Equal(t, []string{"alpha", "beta", "omega"}, ids)
}

func apiServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tenants":
			_ = json.NewEncoder(w).Encode([]string{"alpha", "delta"})
		case "/tenants/alpha":
			_ = json.NewEncoder(w).Encode(tenant.Config{Plan: "premium", Features: []string{"sso"}})
		case "/tenants/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAPILoader(t *testing.T) {
	srv := apiServer(t)
	a, err := NewAPI(APIConfig{BaseURL: srv.URL + "/", Token: "tok"})
	require.NoError(t, err)
	ctx := context.Background()

	cfg, ok, err := a.LoadTenant(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "premium", cfg.Plan)
	assert.Equal(t, []string{"sso"}, cfg.Features)

	_, ok, err = a.LoadTenant(ctx, "gamma")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = a.LoadTenant(ctx, "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")

	ids, err := a.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "delta"}, ids)

	unauthorized, err := NewAPI(APIConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = unauthorized.ListTenantIDs(ctx)
	assert.Error(t, err)

	_, err = NewAPI(APIConfig{})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	first := NewStatic(map[string]tenant.Config{"alpha": {Plan: "premium"}})
	second := NewStatic(map[string]tenant.Config{"alpha": {Plan: "basic"}, "beta": {}})
	var calls int
	counting := tenant.LoaderFunc(func(context.Context, string) (tenant.Config, bool, error) {
		calls++
		return tenant.Config{}, false, nil
	})

	c := NewChain(first, counting, second)
	cfg, ok, err := c.LoadTenant(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "premium", cfg.Plan)
	assert.Zero(t, calls)

	_, ok, err = c.LoadTenant(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)

	ids, err := c.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	failing := tenant.LoaderFunc(func(context.Context, string) (tenant.Config, bool, error) {
		return tenant.Config{}, false, errors.New("down")
	})
	_, _, err = NewChain(failing, second).LoadTenant(ctx, "beta")
	assert.Error(t, err)
}

func TestFromViper(t *testing.T) {
	ctx := context.Background()

	// 默认类型是static
	src, cleanup, err := FromViper(ctx, config.FromMap(staticConfig()))
	require.NoError(t, err)
	cleanup()
	ids, err := src.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	src, _, err = FromViper(ctx, config.FromMap(map[string]interface{}{"tenancy.loader.type": "none"}))
	require.NoError(t, err)
	assert.Nil(t, src)

	_, _, err = FromViper(ctx, config.FromMap(map[string]interface{}{"tenancy.loader.type": "etcd"}))
	assert.Error(t, err)

	_, _, err = FromViper(ctx, config.FromMap(map[string]interface{}{"tenancy.loader.type": "database"}))
	assert.Error(t, err)

	src, cleanup, err = FromViper(ctx, config.FromMap(map[string]interface{}{"tenancy.loader.type": "database"}),
		WithRegistry(registryDB(t)))
	require.NoError(t, err)
	defer cleanup()
	ok, err := tenant.NewDirectory(tenant.WithSource(src)).Exists(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFromViperRedisAndChain(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("tenancy:tenant:delta", "plan", "premium")
	mr.SAdd("tenancy:tenants", "delta")

	values := staticConfig()
	values["tenancy.loader.type"] = "chain"
	values["tenancy.loader.chain"] = []string{"static", "redis"}
	values["tenancy.loader.redis.addr"] = mr.Addr()
	v := config.FromMap(values)

	ctx := context.Background()
	src, cleanup, err := FromViper(ctx, v)
	require.NoError(t, err)
	defer cleanup()

	cfg, ok, err := src.LoadTenant(ctx, "delta")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "premium", cfg.Plan)

	ids, err := src.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "delta"}, ids)
}

func TestNewDirectory(t *testing.T) {
	srv := apiServer(t)
	values := staticConfig()
	values["tenancy.loader.type"] = "api"
	values["tenancy.loader.api.base_url"] = srv.URL
	values["tenancy.loader.api.token"] = "tok"
	values["tenancy.cache_ttl"] = "1m"

	dir, cleanup, err := NewDirectory(context.Background(), config.FromMap(values))
	require.NoError(t, err)
	defer cleanup()
	defer tenant.SetDefault(nil)

	assert.Same(t, dir, tenant.Default())
	assert.True(t, dir.HasStatic("alpha"))
	assert.Equal(t, "1m0s", dir.TTL().String())

	ok, err := dir.Exists(context.Background(), "delta")
	require.NoError(t, err)
	assert.False(t, ok)
	ids, err := dir.ListIDs(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ids, "delta")
}
