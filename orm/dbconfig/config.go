package dbconfig

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	gormLogger "gorm.io/gorm/logger"
)

// Config 基础数据库连接配置，按租户推导时复制后修改
type Config struct {
	DBType   utils.DBType  `json:"db_type" yaml:"db_type" mapstructure:"db_type"`
	Host     string        `json:"host" yaml:"host" mapstructure:"host"`
	Port     int           `json:"port" yaml:"port" mapstructure:"port"`
	User     string        `json:"user" yaml:"user" mapstructure:"user"`
	Password string        `json:"password" yaml:"password" mapstructure:"password"`
	Database string        `json:"database" yaml:"database" mapstructure:"database"` // sqlite为文件路径
	DSN      string        `json:"dsn" yaml:"dsn" mapstructure:"dsn"`                // 自定义DSN优先级最高
	LogMode  utils.LogMode `json:"log_mode" yaml:"log_mode" mapstructure:"log_mode"`
	SSLMode  string        `json:"ssl_mode" yaml:"ssl_mode" mapstructure:"ssl_mode"`
	TimeZone string        `json:"time_zone" yaml:"time_zone" mapstructure:"time_zone"`
	Charset  string        `json:"charset" yaml:"charset" mapstructure:"charset"`
	// 连接池
	MaxOpenConn     int           `json:"max_open_conn" yaml:"max_open_conn" mapstructure:"max_open_conn"`
	MaxIdleConn     int           `json:"max_idle_conn" yaml:"max_idle_conn" mapstructure:"max_idle_conn"`
	ConnMaxLifeTime time.Duration `json:"conn_max_life_time" yaml:"conn_max_life_time" mapstructure:"conn_max_life_time"`
	SlowThreshold   time.Duration `json:"slow_threshold" yaml:"slow_threshold" mapstructure:"slow_threshold"`
}

// GetLogMode _
func (c *Config) GetLogMode() gormLogger.LogLevel {
	switch c.LogMode {
	case utils.LogModeInfo:
		return gormLogger.Info
	case utils.LogModeWarn:
		return gormLogger.Warn
	case utils.LogModeError:
		return gormLogger.Error
	case utils.LogModeSilent:
		return gormLogger.Silent
	}
	return gormLogger.Warn
}

// Clone 复制一份，按租户修改时不影响基础配置
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// GenDSN 生成DSN（复用DBDsnMap模板）
func (c *Config) GenDSN() (string, error) {
	if c.DSN != "" { // 1. 自定义DSN优先级最高
		return c.DSN, nil
	}
	if err := ValidateRequiredFields(c); err != nil {
		return "", err
	}
	template, ok := utils.DBDsnMap[c.DBType]
	if !ok {
		return "", errors.Errorf("no dsn template for db type: %s", c.DBType)
	}
	port := c.Port
	if port == 0 {
		port = utils.DBDefaultPort[c.DBType]
	}
	// 2. 按模板参数拼接（适配不同数据库的参数顺序）
	switch c.DBType {
	case utils.DBTypeSQLite:
		return fmt.Sprintf(template, c.Database), nil
	case utils.DBTypeMySQL:
		return fmt.Sprintf(template, c.User, c.Password, c.Host, port, c.Database, c.Charset), nil
	case utils.DBTypePostgres:
		return fmt.Sprintf(template, c.Host, c.User, c.Password, c.Database, port, c.SSLMode, c.TimeZone), nil
	case utils.DBTypeSqlserver:
		return fmt.Sprintf(template, c.User, c.Password, c.Host, port, c.Database), nil
	}
	return "", errors.Errorf("unsupported db type: %s", c.DBType)
}

// TenantStoreName 租户独立库/schema的名称：tenant_<id>
func TenantStoreName(id string) string {
	return utils.TenantNamePrefix + id
}

// ForTenantDatabase 推导租户独立库的连接配置。
// sqlite：基础文件同目录下的 tenant_<id>.db；C/S数据库：库名 tenant_<id>。
func (c *Config) ForTenantDatabase(id string) *Config {
	cp := c.Clone()
	cp.DSN = ""
	name := TenantStoreName(id)
	if c.DBType.IsFileBased() {
		dir := ""
		if c.Database != "" {
			dir = filepath.Dir(c.Database)
		}
		cp.Database = filepath.Join(dir, name+".db")
		return cp
	}
	cp.Database = name
	return cp
}

// WithSharedDefaults schema/行级策略共享库，未配置库名时使用默认库名
func (c *Config) WithSharedDefaults() *Config {
	cp := c.Clone()
	if cp.DSN == "" && cp.Database == "" {
		cp.Database = utils.DefaultSharedDBName
	}
	return cp
}

// LoadDBConfig 从viper读取 key 节点下的数据库配置
// 参数说明：
//
//	v: viper实例（由外部传入，避免直接依赖config模块）
//	key: 如 "database"
func LoadDBConfig(v *viper.Viper, key string) (*Config, error) {
	if !v.IsSet(key) {
		return nil, errors.Errorf("未配置数据库节点：%s", key)
	}
	cfg := &Config{
		LogMode:  utils.LogModeWarn,
		SSLMode:  "disable",
		TimeZone: "Asia/Shanghai",
		Charset:  "utf8mb4",
	}
	if err := v.UnmarshalKey(key, cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", key)
	}
	cfg.DBType = utils.DBType(strings.ToLower(string(cfg.DBType)))
	setDefaultValuesByType(cfg)
	return cfg, nil
}

// setDefaultValuesByType 按数据库类型设置默认值
func setDefaultValuesByType(cfg *Config) {
	if cfg.MaxOpenConn <= 0 {
		cfg.MaxOpenConn = utils.DefaultMaxOpenConn
	}
	if cfg.MaxIdleConn <= 0 {
		cfg.MaxIdleConn = utils.DefaultMaxIdleConn
	}
	if cfg.ConnMaxLifeTime <= 0 {
		cfg.ConnMaxLifeTime = utils.DefaultConnMaxLifeTime
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = utils.DefaultSlowThreshold
	}
	if cfg.Port == 0 {
		cfg.Port = utils.DBDefaultPort[cfg.DBType]
	}
}

// ValidateRequiredFields 校验必填字段；配置了DSN时跳过
func ValidateRequiredFields(cfg *Config) error {
	if cfg == nil {
		return errors.New("配置结构体不能为空")
	}
	if cfg.DSN != "" {
		return nil
	}
	missing := []string{}
	switch cfg.DBType {
	case utils.DBTypeSQLite:
		if cfg.Database == "" {
			missing = append(missing, "database")
		}
	case utils.DBTypeMySQL, utils.DBTypePostgres, utils.DBTypeSqlserver:
		if cfg.Host == "" {
			missing = append(missing, "host")
		}
		if cfg.User == "" {
			missing = append(missing, "user")
		}
		if cfg.Database == "" {
			missing = append(missing, "database")
		}
	case "":
		return errors.New("缺失必填字段：db_type")
	default:
		return errors.Errorf("暂不支持的数据库类型：%s", cfg.DBType)
	}
	if len(missing) > 0 {
		return errors.Errorf("%s缺失必填字段：[%s]", cfg.DBType, strings.Join(missing, " "))
	}
	return nil
}
