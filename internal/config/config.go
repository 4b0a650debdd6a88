package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "configs/config.yaml"

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Port     int    `mapstructure:"port"`
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`
	NodeID   int64  `mapstructure:"node_id"`
}

type JWTConfig struct {
	SecretKey    string        `mapstructure:"secret_key"`
	AccessExpire time.Duration `mapstructure:"access_expire"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 生成 pgxpool 连接串
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	q := u.Query()
	q.Set("sslmode", sslMode)
	u.RawQuery = q.Encode()
	return u.String()
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr 获取 Redis 地址
func (c RedisConfig) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port <= 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// NATSConfig NATS 配置
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// NotifyConfig 通知总线配置
type NotifyConfig struct {
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	FlushTimeout  time.Duration `mapstructure:"flush_timeout"`
}

// SubscriberConfig 上行指令订阅配置
type SubscriberConfig struct {
	Subject     string `mapstructure:"subject"`
	QueueGroup  string `mapstructure:"queue_group"`
	WorkerCount int    `mapstructure:"worker_count"`
	BufferSize  int    `mapstructure:"buffer_size"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// 从环境变量覆盖配置
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "chat")
	v.SetDefault("app.port", 8081)
	v.SetDefault("app.mode", "release")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("jwt.access_expire", 2*time.Hour)
	v.SetDefault("database.port", 5432)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.name", "chat")
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("notify.subject_prefix", "im.notify")
	v.SetDefault("notify.flush_timeout", 2*time.Second)
	v.SetDefault("subscriber.subject", "im.chat.upstream")
	v.SetDefault("subscriber.queue_group", "chat-group")
	v.SetDefault("subscriber.worker_count", 32)
	v.SetDefault("subscriber.buffer_size", 4096)
}

// applyEnv 从环境变量覆盖配置
func (c *Config) applyEnv() {
	// App
	c.App.Port = GetEnvInt("CHAT_PORT", c.App.Port)
	c.App.Mode = GetEnv("GIN_MODE", c.App.Mode)
	c.App.LogLevel = GetEnv("LOG_LEVEL", c.App.LogLevel)
	c.App.NodeID = int64(GetEnvInt("NODE_ID", int(c.App.NodeID)))

	// JWT
	c.JWT.SecretKey = GetEnv("JWT_SECRET", c.JWT.SecretKey)
	c.JWT.AccessExpire = GetEnvDuration("JWT_ACCESS_EXPIRE", c.JWT.AccessExpire)

	// Database
	c.Database.Host = GetEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = GetEnvInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = GetEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = GetEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = GetEnv("POSTGRES_DB", c.Database.Name)
	c.Database.MaxOpenConns = GetEnvInt("POSTGRES_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = GetEnvInt("POSTGRES_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	// Redis
	c.Redis.Host = GetEnv("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = GetEnvInt("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = GetEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = GetEnvInt("REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = GetEnvInt("REDIS_POOL_SIZE", c.Redis.PoolSize)

	// NATS
	c.NATS.URL = GetEnv("NATS_URL", c.NATS.URL)
	c.Notify.SubjectPrefix = GetEnv("NOTIFY_SUBJECT_PREFIX", c.Notify.SubjectPrefix)
	c.Subscriber.WorkerCount = GetEnvInt("SUBSCRIBER_WORKER_COUNT", c.Subscriber.WorkerCount)
}

// Validate 校验必填配置
func (c *Config) Validate() error {
	if c.JWT.SecretKey == "" {
		return errors.New("config: jwt.secret_key is required")
	}
	if c.Database.Host == "" {
		return errors.New("config: database.host is required")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("config: invalid app.port %d", c.App.Port)
	}
	return nil
}

// Path 解析配置文件路径，命令行参数优先于 CHAT_CONFIG
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return GetEnv("CHAT_CONFIG", DefaultPath)
}
