package main

import (
	"context"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/smms/internal/app"
	"github.com/smms/internal/clock"
	"github.com/smms/internal/config"
	"github.com/smms/internal/db"
	"github.com/smms/internal/handler"
	"github.com/smms/internal/logger"
	"github.com/smms/internal/router"
	"github.com/smms/internal/service"
	"github.com/smms/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer func() { _ = logger.Z().Sync() }()
	for _, warning := range cfg.Validate() {
		logger.Warnw("config_warning", "message", warning)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化数据库
	gdb, err := db.Init(cfg.Database.Driver, cfg.Database.DSN, db.PoolOptions{
		MaxOpenConns:    cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:    cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.Pool.ConnMaxLifetimeSeconds) * time.Second,
	})
	if err != nil {
		logger.Errorw("database_init_failed", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close(gdb) }()

	created, err := db.EnsureAdmin(gdb, cfg.Admin.Email, cfg.Admin.Password, cfg.Security.BcryptCost)
	if err != nil {
		logger.Errorw("admin_seed_failed", "email", cfg.Admin.Email, "error", err)
		os.Exit(1)
	}
	if created {
		logger.Infow("admin_seeded", "email", cfg.Admin.Email)
	}

	limiter, closeLimiter := newLoginLimiter(cfg)
	defer closeLimiter()

	api := handler.NewAPI(gdb, handler.Options{
		Clock:      clock.System{},
		BcryptCost: cfg.Security.BcryptCost,
		Upload: service.UploadOptions{
			Dir:          cfg.Upload.Dir,
			URLPath:      cfg.Upload.URLPath,
			MaxSize:      cfg.Upload.MaxSize,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		BackupDir:      cfg.Backup.Dir,
		Limiter:        limiter,
		SessionTimeout: cfg.Session.Timeout(),
		ConfigSummary:  cfg.Summary(),
	})

	services := []app.Service{}
	if cfg.Scheduler.Enabled {
		scheduler := worker.NewPublishScheduler(api.Publisher(), cfg.Scheduler.Interval())
		api.SetScheduler(scheduler)
		services = append(services, scheduler)
	} else {
		logger.Warnw("scheduler_disabled")
	}

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, router.Options{
		SessionSecret:  cfg.Session.Secret,
		CookieName:     cfg.Session.CookieName,
		SessionTimeout: cfg.Session.Timeout(),
		SecureCookie:   cfg.Session.Secure,
		ForceHTTPS:     cfg.Server.ForceHTTPS,
	})
	services = append(services, app.NewHTTPService(cfg.Server.Addr(), r))

	err = app.RunWithOptions(app.NewRunner(services...), app.Options{
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	})
	if err != nil {
		logger.Errorw("server_exited", "error", err)
		os.Exit(1)
	}
}

// newLoginLimiter 启用 Redis 时使用共享限流，连接失败则退回进程内实现
func newLoginLimiter(cfg *config.AppConfig) (service.LoginLimiter, func()) {
	rule := service.LoginLimitRule{
		Window:      time.Duration(cfg.Security.LoginRateLimit.WindowSeconds) * time.Second,
		MaxAttempts: cfg.Security.LoginRateLimit.MaxAttempts,
		Block:       time.Duration(cfg.Security.LoginRateLimit.BlockSeconds) * time.Second,
	}
	memory := service.NewMemoryLoginLimiter(rule, clock.System{})
	if !cfg.Redis.Enabled {
		return memory, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("redis_unavailable", "addr", cfg.Redis.Addr(), "error", err)
		_ = client.Close()
		return memory, func() {}
	}

	logger.Infow("login_limiter_redis", "addr", cfg.Redis.Addr())
	return service.NewRedisLoginLimiter(client, cfg.Redis.Prefix, rule), func() { _ = client.Close() }
}
