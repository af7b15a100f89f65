package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

var ServiceConf *ServiceConfig

const (
	BackendGorm  = "gorm"
	BackendMongo = "mongo"

	DriverSqlite    = "sqlite"
	DriverMysql     = "mysql"
	DriverPostgres  = "postgres"
	DriverCockroach = "cockroach"

	IDGenUUID = "uuid"
	IDGenWUID = "wuid"
)

type StoreConfig struct {
	Backend string `mapstructure:"backend" json:"backend"` // gorm / mongo
}

// DBConfig 关系型数据库配置
type DBConfig struct {
	Driver       string `mapstructure:"driver" json:"driver"` // sqlite / mysql / postgres / cockroach
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	User         string `mapstructure:"user" json:"user"`
	Password     string `mapstructure:"password" json:"password"`
	DbName       string `mapstructure:"dbname" json:"dbname"`
	Path         string `mapstructure:"path" json:"path"` // sqlite 文件路径
	SSLMode      string `mapstructure:"sslmode" json:"sslmode"`
	LogLevel     string `mapstructure:"logLevel" json:"logLevel"`
	MaxOpenConns int    `mapstructure:"maxOpenConns" json:"maxOpenConns"`
	MaxIdleConns int    `mapstructure:"maxIdleConns" json:"maxIdleConns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host" json:"host"`
	Port     int    `mapstructure:"port" json:"port"`
	PassWord string `mapstructure:"passWord" json:"passWord"`
	DB       int    `mapstructure:"db" json:"db"`
}

type MongoDB struct {
	Link     string `mapstructure:"link" json:"link"`
	Database string `mapstructure:"database" json:"database"`
}

// IDGenConfig 文章 ID 生成方式
type IDGenConfig struct {
	Provider string `mapstructure:"provider" json:"provider"` // uuid / wuid
	Name     string `mapstructure:"name" json:"name"`         // wuid 实例名，用于日志
	Key      string `mapstructure:"key" json:"key"`           // wuid 在 redis 中的计数 key
}

type ServiceConfig struct {
	Store   StoreConfig `mapstructure:"store" json:"store"`
	DB      DBConfig    `mapstructure:"db" json:"db"`
	RedisDB RedisConfig `mapstructure:"redis" json:"redis"`
	Mongo   MongoDB     `mapstructure:"mongo" json:"mongo"`
	IDGen   IDGenConfig `mapstructure:"idgen" json:"idgen"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendGorm)
	v.SetDefault("db.driver", DriverSqlite)
	v.SetDefault("db.path", "solo.db")
	v.SetDefault("db.dbname", "solo")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.logLevel", "warning")
	v.SetDefault("db.maxOpenConns", 30)
	v.SetDefault("db.maxIdleConns", 15)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("mongo.link", "mongodb://127.0.0.1:27017")
	v.SetDefault("mongo.database", "solo")
	v.SetDefault("idgen.provider", IDGenUUID)
	v.SetDefault("idgen.name", "solo-article")
	v.SetDefault("idgen.key", "solo:wuid:article")
}

// LoadConfig 加载配置，path 为空时只使用默认值和环境变量
func LoadConfig(path string) (*ServiceConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SOLO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // 自动读取环境变量, 如 SOLO_DB_DRIVER

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// 显式展开 YAML 中的 ${VAR}
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.Contains(val, "${") {
			v.Set(key, os.ExpandEnv(val))
		}
	}

	var c ServiceConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// InitConfig 加载配置并设置全局 ServiceConf
func InitConfig(path string) error {
	c, err := LoadConfig(path)
	if err != nil {
		return err
	}
	ServiceConf = c
	return nil
}
