// Package config 提供 riskhub 服务配置管理
package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config riskhub 服务配置
type Config struct {
	Service   ServiceConfig   `yaml:"service" json:"service"`
	Postgres  PostgresConfig  `yaml:"postgres" json:"postgres"`
	Redis     RedisConfig     `yaml:"redis" json:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka" json:"kafka"`
	Auth      AuthConfig      `yaml:"auth" json:"auth"`
	Ingestion IngestionConfig `yaml:"ingestion" json:"ingestion"`
	Log       LogConfig       `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Mode     string `yaml:"mode" json:"mode"` // debug, release
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	Database               string `yaml:"database" json:"database"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	MaxConnections         int    `yaml:"max_connections" json:"max_connections"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled    bool     `yaml:"enabled" json:"enabled"`
	Brokers    []string `yaml:"brokers" json:"brokers"`
	ClientID   string   `yaml:"client_id" json:"client_id"`
	AlertTopic string   `yaml:"alert_topic" json:"alert_topic"`
}

// AuthConfig 索引器凭证配置
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret" json:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours" json:"token_ttl_hours"`
	Issuer        string `yaml:"issuer" json:"issuer"`
}

// IngestionConfig 摄取配置
type IngestionConfig struct {
	MaxBatchEvents     int `yaml:"max_batch_events" json:"max_batch_events"`
	LockTTLSeconds     int `yaml:"lock_ttl_seconds" json:"lock_ttl_seconds"`
	LockRetryMillis    int `yaml:"lock_retry_millis" json:"lock_retry_millis"`
	LockMaxRetries     int `yaml:"lock_max_retries" json:"lock_max_retries"`
	NetworkCacheTTLSec int `yaml:"network_cache_ttl_sec" json:"network_cache_ttl_sec"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// 环境变量替换
	content := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars 展开环境变量 ${VAR:default}
func expandEnvVars(s string) string {
	result := s
	for {
		start := strings.Index(result, "${")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := result[start+2 : end]
		parts := strings.SplitN(expr, ":", 2)
		varName := parts[0]
		defaultVal := ""
		if len(parts) > 1 {
			defaultVal = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			value = defaultVal
		}

		result = result[:start] + value + result[end+1:]
	}
	return result
}

// setDefaults 设置默认值
func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = "riskhub"
	}
	if cfg.Service.HTTPPort == 0 {
		cfg.Service.HTTPPort = 8080
	}
	if cfg.Service.Mode == "" {
		cfg.Service.Mode = "release"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 50
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 10
	}
	if cfg.Postgres.ConnMaxLifetimeMinutes == 0 {
		cfg.Postgres.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "riskhub"
	}
	if cfg.Kafka.AlertTopic == "" {
		cfg.Kafka.AlertTopic = "ingestion-alerts"
	}
	if cfg.Auth.TokenTTLHours == 0 {
		cfg.Auth.TokenTTLHours = 24 * 30
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "riskhub"
	}
	if cfg.Ingestion.MaxBatchEvents == 0 {
		cfg.Ingestion.MaxBatchEvents = 1000
	}
	if cfg.Ingestion.LockTTLSeconds == 0 {
		cfg.Ingestion.LockTTLSeconds = 30
	}
	if cfg.Ingestion.LockRetryMillis == 0 {
		cfg.Ingestion.LockRetryMillis = 100
	}
	if cfg.Ingestion.LockMaxRetries == 0 {
		cfg.Ingestion.LockMaxRetries = 50
	}
	if cfg.Ingestion.NetworkCacheTTLSec == 0 {
		cfg.Ingestion.NetworkCacheTTLSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
