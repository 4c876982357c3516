package redis

import (
	"time"
)

// Config tenancy.loader.redis 节点
type Config struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	Prefix      string        `mapstructure:"prefix"` // key前缀，默认 tenancy
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

const defaultPrefix = "tenancy"
