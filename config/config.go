package config

import (
	"os"
	"strings"

	"github.com/goodbye-jack/go-tenancy/log"
	"github.com/goodbye-jack/go-tenancy/utils"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var configPaths = []string{".", "./config", "/opt"} // config配置读取顺序

const envPrefix = "TENANCY"

// Load 读取 config.yaml，再用 config.$CONFIG_ENV.yaml 覆盖，环境变量(TENANCY_前缀)优先级最高
func Load(paths ...string) (*viper.Viper, error) {
	if len(paths) == 0 {
		paths = configPaths
	}
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("读取.env失败：%v", err)
	}
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	found := false
	if err := v.ReadInConfig(); err == nil {
		found = true
		log.Infof("读取基础配置：%s", v.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return nil, errors.Wrap(err, "read base config")
	}
	env := os.Getenv("CONFIG_ENV")
	if env != "" {
		v.SetConfigName("config." + env)
		if err := v.MergeInConfig(); err == nil {
			found = true
			log.Infof("读取并覆盖环境配置：%s", v.ConfigFileUsed())
		} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrapf(err, "read %s config", env)
		}
	}
	if !found {
		return nil, errors.Errorf("未找到任何配置文件！请检查%v下是否有config.yaml或config.%s.yaml", paths, env)
	}
	bindEnv(v)
	setDefaults(v)
	if v.IsSet(utils.ConfigNameServiceName) {
		log.Init(v.GetString(utils.ConfigNameServiceName))
	}
	return v, nil
}

// FromMap 直接由map构建viper（测试、嵌入式场景）
func FromMap(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	for k, val := range values {
		v.Set(k, val)
	}
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(utils.ConfigNameAddr, ":8080")
	v.SetDefault("tenancy.strategy", "database_per_tenant")
	v.SetDefault("tenancy.header_name", utils.TenantHeaderName)
	v.SetDefault("tenancy.exclude_paths", utils.DefaultExcludePaths)
	v.SetDefault("tenancy.validate", true)
	v.SetDefault("tenancy.cache_ttl", utils.DefaultCacheTTL)
	v.SetDefault("tenancy.row_level.column", utils.TenantColumnName)
	v.SetDefault("tenancy.row_level.enforce", true)
	v.SetDefault("tenancy.loader.type", "static")
}
