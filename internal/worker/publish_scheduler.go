package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smms/internal/logger"
	"github.com/smms/internal/service"
)

const (
	defaultScanInterval = 10 * time.Second
	minScanInterval     = time.Second
)

// DueScanner 执行一次到期文章扫描
type DueScanner interface {
	RunDuePublishScan(ctx context.Context) (service.ScanResult, error)
}

// SchedulerStats 调度器运行统计
type SchedulerStats struct {
	Running       bool
	Interval      time.Duration
	Runs          int64
	Failures      int64
	Published     int64
	LastRunAt     time.Time
	LastPublished int64
	LastError     string
}

// PublishScheduler 按固定间隔轮询并发布到期的排期文章。
// 单次扫描失败只记录日志，下一个周期自动重试。
type PublishScheduler struct {
	scanner  DueScanner
	interval time.Duration

	mu    sync.Mutex
	cron  *cron.Cron
	stats SchedulerStats
}

// NewPublishScheduler 创建调度器，interval 不大于 0 时使用 10 秒。
// cron 的最小粒度为 1 秒，更短的间隔按 1 秒处理。
func NewPublishScheduler(scanner DueScanner, interval time.Duration) *PublishScheduler {
	if interval <= 0 {
		interval = defaultScanInterval
	}
	if interval < minScanInterval {
		interval = minScanInterval
	}
	return &PublishScheduler{
		scanner:  scanner,
		interval: interval,
		stats:    SchedulerStats{Interval: interval},
	}
}

// Name 服务名称
func (s *PublishScheduler) Name() string {
	return "publish-scheduler"
}

// Start 启动定时扫描并阻塞到 ctx 结束
func (s *PublishScheduler) Start(ctx context.Context) error {
	if s == nil || s.scanner == nil {
		return errors.New("publish scheduler not initialized")
	}

	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return errors.New("publish scheduler already started")
	}
	// Runner 可能在 Start 真正开始前就已取消并调用过 Stop
	if ctx.Err() != nil {
		s.mu.Unlock()
		return nil
	}
	cronLogger := cron.PrintfLogger(logger.StdLogger())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		_, _ = s.RunOnce(ctx)
	}))
	s.cron = c
	s.stats.Running = true
	s.mu.Unlock()

	c.Start()
	logger.Infow("scheduler_started", "interval", s.interval.String())

	<-ctx.Done()
	s.mu.Lock()
	if s.cron == c {
		s.cron = nil
		s.stats.Running = false
	}
	s.mu.Unlock()
	<-c.Stop().Done()
	logger.Infow("scheduler_stopped")
	return nil
}

// Stop 停止调度并等待正在执行的扫描结束
func (s *PublishScheduler) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.stats.Running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		logger.Infow("scheduler_stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce 立即执行一次扫描，供定时任务与测试使用
func (s *PublishScheduler) RunOnce(ctx context.Context) (service.ScanResult, error) {
	result, err := s.scanner.RunDuePublishScan(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRunAt = time.Now()
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
		s.stats.LastPublished = result.Published
		s.stats.Published += result.Published
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		logger.Errorw("scheduler_scan_failed", "now", result.Now, "error", err)
	case result.Published > 0:
		logger.Infow("scheduler_auto_published", "count", result.Published, "now", result.Now)
	default:
		logger.Debugw("scheduler_scan_idle", "now", result.Now)
	}
	return result, err
}

// Stats 返回运行统计快照
func (s *PublishScheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
