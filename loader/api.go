package loader

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
)

// APIConfig tenancy.loader.api 节点
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// API 外部租户开通服务：GET {base}/tenants/{id}，GET {base}/tenants
type API struct {
	base string
	http *resty.Client
}

func NewAPI(cfg APIConfig) (*API, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("tenant api base_url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	c := resty.New().SetTimeout(cfg.Timeout).SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &API{base: base, http: c}, nil
}

func restyErr(resp *resty.Response) error {
	return errors.Errorf("tenant api %s %s: %s", resp.Request.Method, resp.Request.URL, resp.Status())
}

func (a *API) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	var out tenant.Config
	resp, err := a.http.R().SetContext(ctx).SetResult(&out).Get(a.base + "/tenants/" + url.PathEscape(id))
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "tenant api load %s", id)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
		return out, true, nil
	case http.StatusNotFound:
		return tenant.Config{}, false, nil
	default:
		return tenant.Config{}, false, restyErr(resp)
	}
}

func (a *API) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	resp, err := a.http.R().SetContext(ctx).SetResult(&ids).Get(a.base + "/tenants")
	if err != nil {
		return nil, errors.Wrap(err, "tenant api list")
	}
	if resp.IsError() {
		return nil, restyErr(resp)
	}
	return ids, nil
}
