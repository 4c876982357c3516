package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/chi/v5"
	"github.com/goodbye-jack/go-tenancy/orm"
	"github.com/goodbye-jack/go-tenancy/orm/dbconfig"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDirectory() *tenant.Directory {
	return tenant.NewDirectory(tenant.WithTenants(map[string]tenant.Config{
		"alpha": {Plan: "premium", Features: []string{"reports"}},
		"beta":  {},
	}))
}

func newEngine(i *Interceptor, routes func(r *gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(i.Middleware())
	r.GET("/health", func(c *gin.Context) {
		_, bound := FromGin(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "bound": bound})
	})
	r.GET("/api/me", func(c *gin.Context) {
		id, _ := FromGin(c)
		c.JSON(http.StatusOK, gin.H{"tenant": id})
	})
	if routes != nil {
		routes(r)
	}
	return r
}

func do(h http.Handler, path string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	body := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestMissingTenantIs400(t *testing.T) {
	h := newEngine(New(testDirectory()), nil)
	w, body := do(h, "/api/me", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Tenant identification required", body["error"])
	assert.NotEmpty(t, body["message"])
	assert.Contains(t, body["solution"], "X-Tenant-ID")
}

func TestKnownTenantIsBound(t *testing.T) {
	h := newEngine(New(testDirectory()), nil)
	w, body := do(h, "/api/me", map[string]string{"X-Tenant-ID": "alpha"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", body["tenant"])
}

func TestUnknownTenantIs403WithAvailableTenants(t *testing.T) {
	h := newEngine(New(testDirectory()), nil)
	w, body := do(h, "/api/me", map[string]string{"X-Tenant-ID": "gamma"})
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Invalid tenant", body["error"])
	assert.Equal(t, "gamma", body["requested_tenant"])
	assert.NotEmpty(t, body["solution"])

	available, ok := body["available_tenants"].([]interface{})
	require.True(t, ok)
	require.Len(t, available, 2)
	first := available[0].(map[string]interface{})
	assert.Equal(t, "alpha", first["id"])
	assert.Equal(t, "premium", first["plan"])
	assert.Equal(t, []interface{}{"reports"}, first["features"])
	second := available[1].(map[string]interface{})
	assert.Equal(t, "beta", second["id"])
	assert.Equal(t, "basic", second["plan"])
	assert.Equal(t, []interface{}{}, second["features"])
}

func TestExemptPaths(t *testing.T) {
	i := New(testDirectory())
	assert.True(t, i.Exempt("/"))
	assert.True(t, i.Exempt("/health"))
	assert.True(t, i.Exempt("/docs/index.html"))
	assert.False(t, i.Exempt("/healthz"))
	assert.False(t, i.Exempt("/api/me"))

	h := newEngine(i, nil)
	w, body := do(h, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["bound"])

	i = New(testDirectory(), WithExcludePaths("/public/"))
	assert.True(t, i.Exempt("/public/x"))
	assert.False(t, i.Exempt("/health"))
}

func TestValidationDisabled(t *testing.T) {
	h := newEngine(New(testDirectory(), WithValidation(false)), nil)
	w, body := do(h, "/api/me", map[string]string{"X-Tenant-ID": "anyone"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anyone", body["tenant"])
}

func TestCustomHeaderName(t *testing.T) {
	h := newEngine(New(testDirectory(), WithHeaderName("X-Org")), nil)
	w, _ := do(h, "/api/me", map[string]string{"X-Tenant-ID": "alpha"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(h, "/api/me", map[string]string{"X-Org": "alpha"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", body["tenant"])
}

func TestLoaderBackedValidation(t *testing.T) {
	calls := 0
	dir := tenant.NewDirectory(tenant.WithLoader(tenant.LoaderFunc(func(_ context.Context, id string) (tenant.Config, bool, error) {
		calls++
		if id == "delta" {
			return tenant.Config{Plan: "premium"}, true, nil
		}
		return tenant.Config{}, false, nil
	})))
	h := newEngine(New(dir), nil)

	for n := 0; n < 3; n++ {
		w, body := do(h, "/api/me", map[string]string{"X-Tenant-ID": "delta"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "delta", body["tenant"])
	}
	assert.Equal(t, 1, calls)

	w, _ := do(h, "/api/me", map[string]string{"X-Tenant-ID": "omega"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoaderFailureIs500(t *testing.T) {
	dir := tenant.NewDirectory(tenant.WithLoader(tenant.LoaderFunc(func(context.Context, string) (tenant.Config, bool, error) {
		return tenant.Config{}, false, errors.New("connection refused")
	})))
	h := newEngine(New(dir), nil)
	w, body := do(h, "/api/me", map[string]string{"X-Tenant-ID": "alpha"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Tenant validation failed", body["error"])
	assert.NotEmpty(t, body["solution"])
}

func TestLayeredValidationUsesSnapshotAndGlobal(t *testing.T) {
	dir := testDirectory()
	i := New(dir)
	dir.Remove("alpha")

	h := newEngine(i, nil)
	w, _ := do(h, "/api/me", map[string]string{"X-Tenant-ID": "alpha"})
	assert.Equal(t, http.StatusOK, w.Code, "snapshot taken at construction")

	prev := tenant.Default()
	defer tenant.SetDefault(prev)
	tenant.SetDefault(tenant.NewDirectory(tenant.WithTenants(map[string]tenant.Config{"zeta": {}})))

	w, _ = do(h, "/api/me", map[string]string{"X-Tenant-ID": "zeta"})
	assert.Equal(t, http.StatusOK, w.Code, "live global directory")

	dir.Configure("eta", tenant.Config{})
	w, _ = do(h, "/api/me", map[string]string{"X-Tenant-ID": "eta"})
	assert.Equal(t, http.StatusOK, w.Code, "reconfigured directory")
}

func TestBindingResetAfterRequest(t *testing.T) {
	var seen context.Context
	h := newEngine(New(testDirectory()), func(r *gin.Engine) {
		r.GET("/api/capture", func(c *gin.Context) {
			seen = c.Request.Context()
			c.Status(http.StatusNoContent)
		})
	})
	w, _ := do(h, "/api/capture", map[string]string{"X-Tenant-ID": "beta"})
	require.Equal(t, http.StatusNoContent, w.Code)
	_, ok := tenant.Get(seen)
	assert.False(t, ok)
}

func TestConcurrentRequestsDoNotLeak(t *testing.T) {
	h := newEngine(New(testDirectory()), func(r *gin.Engine) {
		r.GET("/api/slow", func(c *gin.Context) {
			want := c.GetHeader("X-Tenant-ID")
			for n := 0; n < 20; n++ {
				time.Sleep(time.Millisecond)
				if got, _ := FromGin(c); got != want {
					c.Status(http.StatusConflict)
					return
				}
			}
			c.Status(http.StatusOK)
		})
	})

	var wg sync.WaitGroup
	for n := 0; n < 40; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := "alpha"
			if n%2 == 1 {
				id = "beta"
			}
			w, _ := do(h, "/api/slow", map[string]string{"X-Tenant-ID": id})
			assert.Equal(t, http.StatusOK, w.Code)
		}(n)
	}
	wg.Wait()
}

func TestResolvers(t *testing.T) {
	token, err := utils.GenTenantJWT("alpha", "secret", time.Minute)
	require.NoError(t, err)

	resolver := ChainResolver(BearerResolver("secret"), ContextResolver(utils.TenantIdentityKey), HeaderResolver(""))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, "alpha", resolver.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	req.Header.Set("X-Tenant-ID", "beta")
	assert.Equal(t, "beta", resolver.Resolve(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), utils.TenantIdentityKey, "gamma"))
	assert.Equal(t, "gamma", resolver.Resolve(req))

	assert.Empty(t, resolver.Resolve(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestGuards(t *testing.T) {
	h := newEngine(New(testDirectory(), WithValidation(false), AddExcludePaths("/open")), func(r *gin.Engine) {
		r.GET("/api/reports", AllowTenants("alpha"), func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/open", RequireTenant(), func(c *gin.Context) { c.Status(http.StatusOK) })
	})

	w, _ := do(h, "/api/reports", map[string]string{"X-Tenant-ID": "alpha"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(h, "/api/reports", map[string]string{"X-Tenant-ID": "beta"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Tenant not authorized", body["error"])
	assert.Equal(t, []interface{}{"alpha"}, body["allowed_tenants"])

	w, body = do(h, "/open", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Tenant context missing", body["error"])
	assert.Contains(t, body["solution"], "tenant middleware")
}

func TestNetHTTPHandlerWithChi(t *testing.T) {
	i := New(testDirectory())
	r := chi.NewRouter()
	r.Use(i.Handler)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/me", func(w http.ResponseWriter, r *http.Request) {
		id := tenant.MustRequire(r.Context())
		_, _ = w.Write([]byte(id))
	})

	w, _ := do(r, "/api/me", map[string]string{"X-Tenant-ID": "beta"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "beta", w.Body.String())

	w, body := do(r, "/api/me", map[string]string{"X-Tenant-ID": "gamma"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "gamma", body["requested_tenant"])

	w, _ = do(r, "/api/me", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type memo struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

// alpha/beta 两个租户各自独立的sqlite库，gamma被拒绝
func TestEndToEndDatabasePerTenant(t *testing.T) {
	dir := testDirectory()
	base := &dbconfig.Config{
		DBType:   utils.DBTypeSQLite,
		Database: filepath.Join(t.TempDir(), "app.db"),
		LogMode:  utils.LogModeSilent,
	}
	router, err := orm.NewRouter(tenant.DatabasePerTenant, base, orm.WithDirectory(dir))
	require.NoError(t, err)
	defer router.CloseAll()

	_, err = router.MigrateAll(context.Background(), dir, orm.AutoMigrateModels(&memo{}))
	require.NoError(t, err)

	h := newEngine(New(dir), func(r *gin.Engine) {
		r.POST("/api/memos", func(c *gin.Context) {
			sess, err := router.Session(c.Request.Context())
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			defer sess.Close()
			if err := sess.Create(&memo{Body: "from " + sess.TenantID()}); err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Status(http.StatusCreated)
		})
		r.GET("/api/memos", func(c *gin.Context) {
			sess, err := router.Session(c.Request.Context())
			if err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			defer sess.Close()
			var memos []memo
			if err := sess.FindAll(&memos); err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, gin.H{"tenant": sess.TenantID(), "count": len(memos)})
		})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/memos", nil)
	req.Header.Set("X-Tenant-ID", "alpha")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := do(h, "/api/memos", map[string]string{"X-Tenant-ID": "alpha"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alpha", body["tenant"])
	assert.Equal(t, float64(1), body["count"])

	w, body = do(h, "/api/memos", map[string]string{"X-Tenant-ID": "beta"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), body["count"])

	w, body = do(h, "/api/memos", map[string]string{"X-Tenant-ID": "gamma"})
	require.Equal(t, http.StatusForbidden, w.Code)
	ids := []string{}
	for _, item := range body["available_tenants"].([]interface{}) {
		ids = append(ids, item.(map[string]interface{})["id"].(string))
	}
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	w, _ = do(h, "/api/memos", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(h, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
