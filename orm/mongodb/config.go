package mongodb

import "time"

// Config tenancy.loader.mongo 节点。DSN中的路径就是数据库名
type Config struct {
	DSN            string        `mapstructure:"dsn"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
}

const (
	defaultCollection     = "tenants"
	defaultConnectTimeout = 10 * time.Second
	defaultMaxPoolSize    = 20
)
