package handler

import (
	"time"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/service"
	"github.com/smms/internal/worker"
	"gorm.io/gorm"
)

// SchedulerStatsSource 提供自动发布调度器的运行统计
type SchedulerStatsSource interface {
	Stats() worker.SchedulerStats
}

// Options 构造 API 所需的可选配置
type Options struct {
	Clock          clock.Clock
	BcryptCost     int
	Upload         service.UploadOptions
	BackupDir      string
	Limiter        service.LoginLimiter
	SessionTimeout time.Duration
	ConfigSummary  map[string]interface{}
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db             *gorm.DB
	clock          clock.Clock
	posts          *service.PostService
	publisher      *service.PublishService
	users          *service.UserService
	analytics      *service.AnalyticsService
	backups        *service.BackupService
	uploads        *service.UploadService
	limiter        service.LoginLimiter
	scheduler      SchedulerStatsSource
	sessionTimeout time.Duration
	configSummary  map[string]interface{}
	startedAt      time.Time
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = service.NewMemoryLoginLimiter(service.DefaultLoginLimitRule, clk)
	}
	timeout := opts.SessionTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	return &API{
		db:             gdb,
		clock:          clk,
		posts:          service.NewPostService(gdb, clk),
		publisher:      service.NewPublishService(gdb, clk),
		users:          service.NewUserService(gdb, opts.BcryptCost),
		analytics:      service.NewAnalyticsService(gdb, clk),
		backups:        service.NewBackupService(gdb, opts.BackupDir, clk),
		uploads:        service.NewUploadService(opts.Upload, clk),
		limiter:        limiter,
		sessionTimeout: timeout,
		configSummary:  opts.ConfigSummary,
		startedAt:      clk.Now(),
	}
}

// SetScheduler 注册调度器，用于调试接口展示运行状态
func (a *API) SetScheduler(source SchedulerStatsSource) {
	a.scheduler = source
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Publisher 返回到期发布服务，调度器与手动触发共用
func (a *API) Publisher() *service.PublishService {
	return a.publisher
}

// Uploads 返回上传服务，路由用它挂载静态目录
func (a *API) Uploads() *service.UploadService {
	return a.uploads
}
