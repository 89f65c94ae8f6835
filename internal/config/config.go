// Package config 负责加载和校验应用配置。
// 配置来源优先级：环境变量 > .env 文件 > 默认值。
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 后端驱动类型
const (
	DriverREST  = "rest"  // 托管的后端服务（REST 表接口 + 认证接口）
	DriverMySQL = "mysql" // 自建 MySQL
)

// placeholderValues 是示例配置中常见的占位值，视为未配置
var placeholderValues = []string{
	"your-project-url",
	"your_supabase_url",
	"your-supabase-url",
	"your-anon-key",
	"your_supabase_anon_key",
	"your-supabase-anon-key",
	"changeme",
}

// Config 汇总应用的全部配置
type Config struct {
	App        AppConfig
	Log        LogConfig
	Backend    BackendConfig
	Database   DatabaseConfig
	Migrations MigrationsConfig
	Redis      RedisConfig
	Cache      CacheConfig
	CORS       CORSConfig
	JWT        JWTConfig
	Session    SessionConfig
	RateLimit  RateLimitConfig
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name            string
	Env             string
	Version         string
	Port            int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string
	Encoding string
}

// BackendConfig 数据后端配置
type BackendConfig struct {
	Driver  string
	URL     string
	AnonKey string
	Timeout time.Duration
}

// IsConfigured 判断后端是否可用。
// rest 驱动要求 URL 与访问密钥都存在且不是占位值；mysql 驱动只看驱动名。
func (b BackendConfig) IsConfigured() bool {
	switch b.Driver {
	case DriverMySQL:
		return true
	case DriverREST, "":
		return isRealValue(b.URL) && isRealValue(b.AnonKey)
	default:
		return false
	}
}

// DatabaseConfig MySQL 连接配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// MigrationsConfig 迁移文件配置
type MigrationsConfig struct {
	Dir string
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enabled bool
	Type    string // redis | memory
	TTL     time.Duration
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// JWTConfig 令牌配置（仅 mysql 驱动签发令牌时使用）
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SessionConfig 客户端会话配置
type SessionConfig struct {
	IdleTTL time.Duration
}

// RateLimitConfig 认证接口限流配置
type RateLimitConfig struct {
	Enabled bool
	Rate    int64
	Window  time.Duration
	Burst   int64
}

// Load 加载配置：先读取 .env（不存在时忽略），再读取环境变量并校验
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", "storefront"),
			Env:             getEnv("APP_ENV", "dev"),
			Version:         getEnv("APP_VERSION", "0.1.0"),
			Port:            getEnvInt("APP_PORT", 8080),
			RequestTimeout:  getEnvDuration("APP_REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvDuration("APP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Backend: BackendConfig{
			Driver:  strings.ToLower(getEnv("BACKEND_DRIVER", DriverREST)),
			URL:     strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			AnonKey: getEnv("SUPABASE_ANON_KEY", ""),
			Timeout: getEnvDuration("BACKEND_TIMEOUT", 8*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "storefront"),
		},
		Migrations: MigrationsConfig{
			Dir: getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("CACHE_ENABLED", true),
			Type:    strings.ToLower(getEnv("CACHE_TYPE", "memory")),
			TTL:     getEnvDuration("CACHE_TTL", 5*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
			AllowedMethods: splitCSV(getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")),
			AllowedHeaders: splitCSV(getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Client-ID,X-Request-ID,X-Idempotency-Key")),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TOKEN_TTL", time.Hour),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		Session: SessionConfig{
			IdleTTL: getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled: getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:    int64(getEnvInt("RATE_LIMIT_RATE", 10)),
			Window:  getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
			Burst:   int64(getEnvInt("RATE_LIMIT_BURST", 10)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置的合法性
func (c *Config) Validate() error {
	var errs []error

	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT out of range: %d", c.App.Port))
	}
	switch c.Log.Encoding {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_ENCODING must be json or console, got %q", c.Log.Encoding))
	}
	switch c.Backend.Driver {
	case DriverREST:
	case DriverMySQL:
		if c.Database.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required for the mysql driver"))
		}
		if len(c.JWT.Secret) < 16 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("BACKEND_DRIVER must be %s or %s, got %q", DriverREST, DriverMySQL, c.Backend.Driver))
	}
	switch c.Cache.Type {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("CACHE_TYPE must be redis or memory, got %q", c.Cache.Type))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_RATE and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Session.IdleTTL <= 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TTL must be positive"))
	}

	return errors.Join(errs...)
}

// RedisAddr 返回 host:port 形式的 Redis 地址
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func isRealValue(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	lower := strings.ToLower(v)
	for _, p := range placeholderValues {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
