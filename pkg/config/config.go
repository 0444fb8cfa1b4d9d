package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Helm     HelmConfig     `yaml:"helm"`
	Cache    CacheConfig    `yaml:"cache"`
}

type ServerConfig struct {
	Port           int    `yaml:"port"`
	SSLCertificate string `yaml:"ssl_certificate"`
	SSLKey         string `yaml:"ssl_key"`
}

// SetDefaults 设置默认值
func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 18080
	}
}

// Validate 验证服务配置
func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Port)
	}
	if (c.SSLCertificate == "") != (c.SSLKey == "") {
		return fmt.Errorf("ssl_certificate ($SLATE_SSL_CERTIFICATE) and ssl_key ($SLATE_SSL_KEY) must be specified together")
	}
	return nil
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // 数据库驱动: mysql, postgres (默认: postgres)
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

func (c *DatabaseConfig) DSN() string {
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
	// 默认 PostgreSQL
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

// SetDefaults 设置默认值
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "postgres"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		if c.Driver == "mysql" {
			c.Port = 3306
		} else {
			c.Port = 5432
		}
	}
	if c.DBName == "" {
		c.DBName = "slate"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 3600 // 1 hour
	}
}

type RedisConfig struct {
	// Enabled 是否启用Redis
	// - true: 实体缓存与可达性缓存走Redis（多实例部署时共享）
	// - false: 使用进程内缓存（单机部署）
	Enabled bool `yaml:"enabled"`

	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	ConnectTimeout int    `yaml:"connect_timeout"`
	ReadTimeout    int    `yaml:"read_timeout"`
	WriteTimeout   int    `yaml:"write_timeout"`
	PoolSize       int    `yaml:"pool_size"`
}

// Validate 验证Redis配置
func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("redis host is required when enabled=true")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid redis port: %d", c.Port)
	}
	return nil
}

// SetDefaults 设置默认值
func (c *RedisConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 6379
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Output string `yaml:"output"` // console / file / both
	File   string `yaml:"file"`   // 日志文件路径
}

type HelmConfig struct {
	// RepoBase Helm chart 仓库基础URL
	RepoBase string `yaml:"repo_base"`
	// StableRepo 稳定版仓库名称
	StableRepo string `yaml:"stable_repo"`
	// DevRepo 开发版仓库名称
	DevRepo string `yaml:"dev_repo"`
	// SkipRepoInit 跳过启动时的 helm 仓库检查（测试用）
	SkipRepoInit bool `yaml:"skip_repo_init"`
}

// SetDefaults 设置默认值
func (c *HelmConfig) SetDefaults() {
	if c.RepoBase == "" {
		c.RepoBase = "https://raw.githubusercontent.com/slateci/slate-catalog/master"
	}
	if c.StableRepo == "" {
		c.StableRepo = "slate"
	}
	if c.DevRepo == "" {
		c.DevRepo = "slate-dev"
	}
}

type CacheConfig struct {
	// EntityTTL 实体缓存生存期（秒）
	EntityTTL int `yaml:"entity_ttl"`
	// RecordTTL 实例/Secret记录缓存生存期（秒）
	RecordTTL int `yaml:"record_ttl"`
	// ReachabilityTTL 集群可达性缓存生存期（秒）
	ReachabilityTTL int `yaml:"reachability_ttl"`
}

// SetDefaults 设置默认值
func (c *CacheConfig) SetDefaults() {
	if c.EntityTTL == 0 {
		c.EntityTTL = 60
	}
	if c.RecordTTL == 0 {
		c.RecordTTL = 30
	}
	if c.ReachabilityTTL == 0 {
		c.ReachabilityTTL = 60
	}
}

var GlobalConfig *Config

// Load 读取配置文件并应用 SLATE_* 环境变量覆盖
// 配置文件路径为空时仅使用默认值和环境变量。
func Load(configPath string) (*Config, error) {
	var config Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvironment(&config)

	config.Server.SetDefaults()
	config.Database.SetDefaults()
	config.Redis.SetDefaults()
	config.Helm.SetDefaults()
	config.Cache.SetDefaults()

	if err := config.Server.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if err := config.Redis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid redis config: %w", err)
	}

	GlobalConfig = &config
	return &config, nil
}

// applyEnvironment 应用环境变量覆盖（容器部署时使用）
func applyEnvironment(config *Config) {
	if port := os.Getenv("SLATE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if cert := os.Getenv("SLATE_SSL_CERTIFICATE"); cert != "" {
		config.Server.SSLCertificate = cert
	}
	if key := os.Getenv("SLATE_SSL_KEY"); key != "" {
		config.Server.SSLKey = key
	}

	// 数据库配置
	if driver := os.Getenv("SLATE_DB_DRIVER"); driver != "" {
		config.Database.Driver = driver
	}
	if host := os.Getenv("SLATE_DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("SLATE_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Database.Port = p
		}
	}
	if user := os.Getenv("SLATE_DB_USER"); user != "" {
		config.Database.User = user
	}
	if password := os.Getenv("SLATE_DB_PASSWORD"); password != "" {
		config.Database.Password = password
	}
	if name := os.Getenv("SLATE_DB_NAME"); name != "" {
		config.Database.DBName = name
	}

	// 旧版部署通过 SLATE_aws* 指定存储后端；保留识别，按通用存储端点处理
	if accessKey := os.Getenv("SLATE_awsAccessKey"); accessKey != "" && config.Database.User == "" {
		config.Database.User = accessKey
	}
	if secretKey := os.Getenv("SLATE_awsSecretKey"); secretKey != "" && config.Database.Password == "" {
		config.Database.Password = secretKey
	}
	if endpoint := os.Getenv("SLATE_awsEndpoint"); endpoint != "" && config.Database.Host == "" {
		config.Database.Host = endpoint
	}

	// Redis配置
	if enabled := os.Getenv("SLATE_REDIS_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Redis.Enabled = b
		}
	}
	if host := os.Getenv("SLATE_REDIS_HOST"); host != "" {
		config.Redis.Host = host
	}
	if port := os.Getenv("SLATE_REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Redis.Port = p
		}
	}
	if password := os.Getenv("SLATE_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}
	if db := os.Getenv("SLATE_REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			config.Redis.DB = d
		}
	}
}
