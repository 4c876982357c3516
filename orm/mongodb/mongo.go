package mongodb

import (
	"context"
	"net/url"
	"strings"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/tenant"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// tenantDoc tenants集合中的文档，_id就是租户ID
type tenantDoc struct {
	ID       string                 `bson:"_id"`
	Name     string                 `bson:"name,omitempty"`
	Plan     string                 `bson:"plan,omitempty"`
	Features []string               `bson:"features,omitempty"`
	Status   string                 `bson:"status,omitempty"`
	DSN      string                 `bson:"dsn,omitempty"`
	Database string                 `bson:"database,omitempty"`
	Schema   string                 `bson:"schema,omitempty"`
	Extra    map[string]interface{} `bson:"extra,omitempty"`
}

func (d tenantDoc) config() tenant.Config {
	return tenant.Config{
		Name:     d.Name,
		Plan:     d.Plan,
		Features: d.Features,
		Status:   d.Status,
		DSN:      d.DSN,
		Database: d.Database,
		Schema:   d.Schema,
		Extra:    d.Extra,
	}
}

func docOf(id string, cfg tenant.Config) tenantDoc {
	return tenantDoc{
		ID:       id,
		Name:     cfg.Name,
		Plan:     cfg.PlanOrDefault(),
		Features: cfg.Features,
		Status:   cfg.Status,
		DSN:      cfg.DSN,
		Database: cfg.Database,
		Schema:   cfg.Schema,
		Extra:    cfg.Extra,
	}
}

// TenantStore 基于mongo集合的租户来源
type TenantStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewTenantStore(coll *mongo.Collection) *TenantStore {
	return &TenantStore{coll: coll}
}

// Open 连接mongo，数据库名取自DSN路径
func Open(ctx context.Context, cfg Config) (*TenantStore, error) {
	dbName, err := parseDBNameFromDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = defaultMaxPoolSize
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	opts := options.Client().ApplyURI(cfg.DSN).SetMaxPoolSize(cfg.MaxPoolSize)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "mongo ping")
	}
	log.Infof("【Mongo初始化】数据库：%s | 集合：%s", dbName, cfg.Collection)
	s := NewTenantStore(client.Database(dbName).Collection(cfg.Collection))
	s.client = client
	return s, nil
}

// parseDBNameFromDSN mongodb://host:port/[dbname]?xxx
func parseDBNameFromDSN(dsn string) (string, error) {
	uri, err := url.Parse(dsn)
	if err != nil {
		return "", errors.Wrap(err, "invalid mongo dsn")
	}
	dbName := strings.Trim(uri.Path, "/")
	if dbName == "" {
		return "", errors.New("mongo dsn missing database name (mongodb://host:port/[dbname])")
	}
	return dbName, nil
}

func (s *TenantStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *TenantStore) LoadTenant(ctx context.Context, id string) (tenant.Config, bool, error) {
	var doc tenantDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tenant.Config{}, false, nil
	}
	if err != nil {
		return tenant.Config{}, false, errors.Wrapf(err, "mongo find tenant %s", id)
	}
	return doc.config(), true, nil
}

func (s *TenantStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo list tenants")
	}
	var docs []tenantDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "mongo decode tenants")
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

// Save upsert整份文档
func (s *TenantStore) Save(ctx context.Context, id string, cfg tenant.Config) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": id}, docOf(id, cfg), options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "mongo save tenant %s", id)
}

func (s *TenantStore) Delete(ctx context.Context, id string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return errors.Wrapf(err, "mongo delete tenant %s", id)
}
