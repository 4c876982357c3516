package utils

import "time"

const (
	TenantHeaderName   = "X-Tenant-ID"
	TenantContextName  = "ContextTenant" // 上游认证中间件挂载租户身份的ctx key
	TenantColumnName   = "tenant_id"
	TenantNamePrefix   = "tenant_"
	TenantRegistryName = "tenants"

	DefaultTenantPlan   = "basic"
	TenantStatusActive  = "active"
	DefaultCacheTTL     = 300 * time.Second
	DefaultSharedDBName = "multitenant_db"

	JWTSecret = "goodbye-jack,comeon"
)

// DefaultExcludePaths 无需租户标识的公共路径
var DefaultExcludePaths = []string{
	"/",
	"/health",
	"/tenants",
	"/docs",
	"/openapi.json",
	"/favicon.ico",
	"/redoc",
}

// 配置项名称
const (
	ConfigNameServiceName = "service_name"
	ConfigNameAddr        = "addr"
	ConfigNameTenancy     = "tenancy"
	ConfigNameTenants     = "tenants"
	ConfigNameDatabase    = "database"
	ConfigNameJWTSecret   = "tenancy.jwt_secret"
)

type DBType string

const (
	DBTypeMySQL     DBType = "mysql"
	DBTypePostgres  DBType = "postgres"
	DBTypeSqlserver DBType = "sqlserver"
	DBTypeSQLite    DBType = "sqlite"
	DBTypeRedis     DBType = "redis"
	DBTypeMongo     DBType = "mongo"
)

// IsFileBased 本地文件/进程内驱动，只需要文件路径
func (t DBType) IsFileBased() bool {
	return t == DBTypeSQLite
}

type LogMode string

const (
	LogModeSilent LogMode = "silent"
	LogModeError  LogMode = "error"
	LogModeWarn   LogMode = "warn"
	LogModeInfo   LogMode = "info"
)

// DBDsnMap 各关系型数据库DSN模板
var DBDsnMap = map[DBType]string{
	DBTypeMySQL:     "%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
	DBTypePostgres:  "host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
	DBTypeSqlserver: "sqlserver://%s:%s@%s:%d?database=%s",
	DBTypeSQLite:    "%s",
}

// 默认端口
var DBDefaultPort = map[DBType]int{
	DBTypeMySQL:     3306,
	DBTypePostgres:  5432,
	DBTypeSqlserver: 1433,
}

const (
	DefaultMaxOpenConn     = 100
	DefaultMaxIdleConn     = 10
	DefaultConnMaxLifeTime = 5 * time.Minute
	DefaultSlowThreshold   = time.Second
)
