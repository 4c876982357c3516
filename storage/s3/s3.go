package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const (
	defaultRegion = "us-east-1"
	defaultPrefix = "tenancy"
	tenantsDir    = "tenants"
	objectExt     = ".json"
)

type ParamsError struct {
	Params []string
}

func (e ParamsError) Error() string {
	return fmt.Sprintf("params %+v error", e.Params)
}

// Config tenancy.loader.s3 节点
type Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	BasePrefix     string `mapstructure:"base_prefix"`
}

func normalizeConfig(cfg Config) Config {
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	cfg.BasePrefix = strings.Trim(cfg.BasePrefix, "/")
	if cfg.BasePrefix == "" {
		cfg.BasePrefix = defaultPrefix
	}
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Bucket = strings.Trim(cfg.Bucket, "/")
	return cfg
}

func validateConfig(cfg Config) error {
	missing := []string{}
	if cfg.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if cfg.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if cfg.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return ParamsError{Params: missing}
	}
	return nil
}

// TenantStore 每个租户一个JSON对象：<prefix>/tenants/<id>.json
type TenantStore struct {
	cfg    Config
	client *minio.Client
}

func New(cfg Config) (*TenantStore, error) {
	cfg = normalizeConfig(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	host, secure, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	if !cfg.ForcePathStyle && shouldForcePathStyle(host) {
		cfg.ForcePathStyle = true
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	}
	if cfg.ForcePathStyle {
		opts.BucketLookup = minio.BucketLookupPath
	}
	mc, err := minio.New(host, opts)
	if err != nil {
		return nil, errors.Wrap(err, "minio client")
	}
	log.Infof("【S3初始化】endpoint：%s | bucket：%s | prefix：%s", host, cfg.Bucket, cfg.BasePrefix)
	return &TenantStore{cfg: cfg, client: mc}, nil
}

func (s *TenantStore) Config() Config {
	return s.cfg
}

func (s *TenantStore) listPrefix() string {
	return s.cfg.BasePrefix + "/" + tenantsDir + "/"
}

// ObjectKey 租户配置对象的key
func (s *TenantStore) ObjectKey(id string) string {
	return s.listPrefix() + id + objectExt
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *TenantStore) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	if strings.ContainsAny(id, "/\\") {
		return tenant.Config{}, false, nil
	}
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, s.ObjectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "s3 get tenant %s", id)
	}
	defer obj.Close()
	raw, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return tenant.Config{}, false, nil
		}
		return tenant.Config{}, false, errors.Wrapf(err, "s3 read tenant %s", id)
	}
	var cfg tenant.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "s3 decode tenant %s", id)
	}
	return cfg, true, nil
}

func (s *TenantStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	prefix := s.listPrefix()
	var ids []string
	for obj := range s.client.ListObjects(ctx, s.cfg.Bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, "s3 list tenants")
		}
		name := strings.TrimPrefix(obj.Key, prefix)
		if !strings.HasSuffix(name, objectExt) || strings.Contains(name, "/") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, objectExt))
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *TenantStore) Save(ctx context.Context, id string, cfg tenant.Config) error {
	if cfg.Plan == "" {
		cfg.Plan = cfg.PlanOrDefault()
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrapf(err, "encode tenant %s", id)
	}
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, s.ObjectKey(id), bytes.NewReader(raw), int64(len(raw)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return errors.Wrapf(err, "s3 put tenant %s", id)
}

func (s *TenantStore) Delete(ctx context.Context, id string) error {
	err := s.client.RemoveObject(ctx, s.cfg.Bucket, s.ObjectKey(id), minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "s3 remove tenant %s", id)
}

func normalizeEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", false, errors.New("empty endpoint")
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", false, err
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false, errors.New("unsupported scheme")
		}
		host := strings.TrimSpace(u.Host)
		if host == "" {
			return "", false, errors.New("invalid endpoint")
		}
		return host, u.Scheme == "https", nil
	}
	return strings.TrimRight(endpoint, "/"), useSSL, nil
}

// shouldForcePathStyle IP或带端口的endpoint（minio本地部署）用path-style
func shouldForcePathStyle(hostport string) bool {
	host := strings.TrimSpace(hostport)
	if host == "" {
		return false
	}
	hostOnly := host
	if strings.HasPrefix(hostOnly, "[") {
		if h, _, err := net.SplitHostPort(hostOnly); err == nil {
			hostOnly = strings.Trim(h, "[]")
		}
	} else if h, _, err := net.SplitHostPort(hostOnly); err == nil {
		hostOnly = h
	}
	if net.ParseIP(hostOnly) != nil {
		return true
	}
	return strings.Contains(hostport, ":")
}
