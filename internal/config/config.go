package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/smms/internal/logger"
	"github.com/spf13/viper"
)

const defaultSessionSecret = "smms-dev-secret-change-in-production"

// AppConfig 汇总运行服务所需的全部配置。
type AppConfig struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Security  SecurityConfig  `mapstructure:"security"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host       string `mapstructure:"host"`
	Port       string `mapstructure:"port"`
	Mode       string `mapstructure:"mode"` // debug / release
	ForceHTTPS bool   `mapstructure:"force_https"`
}

// Addr 返回监听地址。
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // sqlite / postgres
	DSN    string             `mapstructure:"dsn"`
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	Secret         string `mapstructure:"secret"`
	CookieName     string `mapstructure:"cookie_name"`
	TimeoutMinutes int    `mapstructure:"timeout_minutes"`
	Secure         bool   `mapstructure:"secure"`
}

// Timeout 返回会话空闲超时时长。
func (c SessionConfig) Timeout() time.Duration {
	if c.TimeoutMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SchedulerConfig 自动发布调度配置
type SchedulerConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
}

// Interval 返回扫描间隔。
func (c SchedulerConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// UploadConfig 图片上传配置
type UploadConfig struct {
	Dir          string   `mapstructure:"dir"`
	URLPath      string   `mapstructure:"url_path"`
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// BackupConfig 备份配置
type BackupConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// RedisConfig Redis 配置，仅用于登录限流。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// Addr 返回 Redis 地址。
func (c RedisConfig) Addr() string {
	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Port
	if port <= 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	BcryptCost     int                  `mapstructure:"bcrypt_cost"`
	LoginRateLimit LoginRateLimitConfig `mapstructure:"login_rate_limit"`
}

// LoginRateLimitConfig 登录限流配置
type LoginRateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// AdminConfig 初始管理员账号
type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// Load 依次读取 .env、config.yml 与环境变量，并为缺失项提供默认值。
// 环境变量使用下划线分隔层级，例如 SERVER_PORT、DATABASE_DSN。
func Load(configPaths ...string) (*AppConfig, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{".", "./etc"}
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Admin.Email = strings.ToLower(strings.TrimSpace(cfg.Admin.Email))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.force_https", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "smms.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)

	v.SetDefault("session.secret", defaultSessionSecret)
	v.SetDefault("session.cookie_name", "smms_session")
	v.SetDefault("session.timeout_minutes", 15)
	v.SetDefault("session.secure", false)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval_seconds", 10)

	v.SetDefault("upload.dir", "public/uploads")
	v.SetDefault("upload.url_path", "/uploads")
	v.SetDefault("upload.max_size", 5*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/gif", "image/webp"})

	v.SetDefault("backup.dir", "backups")

	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "smms.log")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "smms")

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.login_rate_limit.window_seconds", 300)
	v.SetDefault("security.login_rate_limit.max_attempts", 5)
	v.SetDefault("security.login_rate_limit.block_seconds", 900)

	v.SetDefault("admin.email", "admin@smms.local")
	v.SetDefault("admin.password", "")
}

// Validate 返回配置中的风险提示，不阻断启动。
func (c *AppConfig) Validate() []string {
	var warnings []string

	secret := strings.TrimSpace(c.Session.Secret)
	if secret == "" || secret == defaultSessionSecret {
		warnings = append(warnings, "SESSION_SECRET not set or using default value")
	} else if len(secret) < 32 {
		warnings = append(warnings, "SESSION_SECRET is shorter than 32 characters")
	}

	if c.Server.Mode == "release" && !c.Server.ForceHTTPS {
		warnings = append(warnings, "SERVER_FORCE_HTTPS is not enabled in release mode")
	}

	if c.Security.BcryptCost < 12 {
		warnings = append(warnings, "SECURITY_BCRYPT_COST should be at least 12")
	}

	if strings.TrimSpace(c.Admin.Password) == "" {
		warnings = append(warnings, "ADMIN_PASSWORD is empty, default admin will not be seeded")
	}

	return warnings
}

// Summary 返回可对外暴露的配置摘要，用于健康检查。
func (c *AppConfig) Summary() map[string]interface{} {
	return map[string]interface{}{
		"mode":                    c.Server.Mode,
		"database_driver":         c.Database.Driver,
		"session_timeout_minutes": int(c.Session.Timeout() / time.Minute),
		"scheduler_enabled":       c.Scheduler.Enabled,
		"scheduler_interval_secs": int(c.Scheduler.Interval() / time.Second),
		"max_login_attempts":      c.Security.LoginRateLimit.MaxAttempts,
		"https_enforced":          c.Server.ForceHTTPS,
		"upload_limit_bytes":      c.Upload.MaxSize,
	}
}
