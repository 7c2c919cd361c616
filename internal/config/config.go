// Package config 统一配置管理
//
// 配置加载策略：
//  1. 从 .env 加载敏感信息（密码）和 APP_ENV
//  2. 根据 APP_ENV 加载对应的 configs/{env}.yaml 配置文件
//  3. 环境变量可覆盖 YAML 配置
//
// 使用方式：
//   - 开发环境: APP_ENV=dev (默认)
//   - 测试环境: APP_ENV=test
//   - 生产环境: APP_ENV=prod
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// Adapter 声明存储适配器种类
type Adapter string

const (
	AdapterRedis    Adapter = "redis"
	AdapterEtcd     Adapter = "etcd"
	AdapterPostgres Adapter = "postgres"
	AdapterMemory   Adapter = "memory"
	AdapterNone     Adapter = "none" // 降级：视为唯一
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Claims   ClaimsConfig   `yaml:"claims"`
	Redis    RedisConfig    `yaml:"redis"`
	Etcd     EtcdConfig     `yaml:"etcd"`
	Database DatabaseConfig `yaml:"database"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

// ClaimsConfig 唯一性声明配置
type ClaimsConfig struct {
	// Adapter 使用的存储适配器：redis / etcd / postgres / memory / none
	Adapter string `yaml:"adapter"`

	// DefaultPartition 进程级默认分区
	DefaultPartition string `yaml:"default_partition"`

	// PartitionByCommandType 未显式指定分区时按命令类型派生
	PartitionByCommandType bool `yaml:"partition_by_command_type"`

	// Rules 服务模式下按命令类型配置的唯一性规则
	Rules []RuleConfig `yaml:"rules"`
}

// RuleConfig 一条唯一性规则的配置形式
type RuleConfig struct {
	CommandType string   `yaml:"command_type"`
	Fields      []string `yaml:"fields"`
	Message     string   `yaml:"message"`
	Label       string   `yaml:"label"`
	IgnoreCase  bool     `yaml:"ignore_case"`
	FoldFields  []string `yaml:"fold_fields"`
	Partition   string   `yaml:"partition"`
	NoOwner     bool     `yaml:"no_owner"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	DB   int    `yaml:"db"`
}

type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"`
	Prefix    string   `yaml:"prefix"`
}

type DatabaseConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	User    string `yaml:"user"`
	Name    string `yaml:"name"`
	SSLMode string `yaml:"sslmode"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env           Environment
	Port          string
	Claims        ClaimsConfig
	RedisURL      string
	EtcdEndpoints []string
	EtcdPrefix    string
	DatabaseURL   string
}

var configPaths = []string{
	"configs",
	"../configs",
	"../../configs",
	"../../../configs",
}

var envPaths = []string{
	".env",
	"../.env",
	"../../.env",
	"../../../.env",
}

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 根据 APP_ENV 加载 configs/{env}.yaml
// 3. 环境变量覆盖，构建最终配置
func Load() *Config {
	for _, p := range envPaths {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	env := parseEnv(getEnv("APP_ENV", "dev"))
	yamlCfg := loadYAMLConfig(env)

	dbPassword := getEnv("DB_PASSWORD", "claimd_dev_password")
	redisPassword := getEnv("REDIS_PASSWORD", "")

	cfg := &Config{
		Env:           env,
		Port:          getEnv("PORT", yamlCfg.Server.Port),
		Claims:        yamlCfg.Claims,
		RedisURL:      getEnv("REDIS_URL", buildRedisURL(yamlCfg.Redis, redisPassword)),
		EtcdEndpoints: yamlCfg.Etcd.Endpoints,
		EtcdPrefix:    yamlCfg.Etcd.Prefix,
		DatabaseURL:   getEnv("DATABASE_URL", buildDatabaseURL(yamlCfg.Database, dbPassword)),
	}

	if v := os.Getenv("CLAIM_ADAPTER"); v != "" {
		cfg.Claims.Adapter = v
	}
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		cfg.EtcdEndpoints = strings.Split(v, ",")
	}

	cfg.Claims.validate()
	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *YAMLConfig {
	cfg := &YAMLConfig{
		Server: ServerConfig{Port: "8080"},
		Claims: ClaimsConfig{
			Adapter:          string(AdapterMemory),
			DefaultPartition: "uniqueness",
		},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, DB: 0},
		Etcd:     EtcdConfig{Endpoints: []string{"localhost:2379"}, Prefix: "/claims"},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "claimd", Name: "claimd", SSLMode: "disable"},
	}

	for _, base := range configPaths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range configPaths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, cfg)
			break
		}
	}

	return cfg
}

// buildDatabaseURL 构建 PostgreSQL 连接字符串
func buildDatabaseURL(db DatabaseConfig, password string) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, password, db.Host, db.Port, db.Name, db.SSLMode)
}

// buildRedisURL 构建 Redis 连接字符串
func buildRedisURL(redis RedisConfig, password string) string {
	if password != "" {
		return fmt.Sprintf("redis://:%s@%s:%d/%d", password, redis.Host, redis.Port, redis.DB)
	}
	return fmt.Sprintf("redis://%s:%d/%d", redis.Host, redis.Port, redis.DB)
}

func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Adapter: %s, Redis: %s, DB: %s}",
		c.Env, c.Claims.Adapter, maskPassword(c.RedisURL), maskPassword(c.DatabaseURL))
}

// maskPassword 隐藏密码
func maskPassword(url string) string {
	re := regexp.MustCompile(`(://[^:@/]*:)([^@]+)(@)`)
	return re.ReplaceAllString(url, "${1}***${3}")
}

// validate 验证并填充声明配置默认值
func (c *ClaimsConfig) validate() {
	switch Adapter(strings.ToLower(c.Adapter)) {
	case AdapterRedis, AdapterEtcd, AdapterPostgres, AdapterMemory, AdapterNone:
		c.Adapter = strings.ToLower(c.Adapter)
	default:
		c.Adapter = string(AdapterMemory)
	}
	if c.DefaultPartition == "" {
		c.DefaultPartition = "uniqueness"
	}
	for i := range c.Rules {
		if c.Rules[i].Message == "" {
			c.Rules[i].Message = "value already taken"
		}
	}
}
