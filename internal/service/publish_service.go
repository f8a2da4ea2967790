package service

import (
	"context"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/db"
	"gorm.io/gorm"
)

// ScanResult 描述一次到期扫描的结果
type ScanResult struct {
	Published int64  `json:"published"`
	Now       string `json:"now"`
}

// SchedulerSnapshot 汇总排期队列状态，供调试接口查看
type SchedulerSnapshot struct {
	Now      string    `json:"now"`
	Due      int64     `json:"due"`
	Upcoming []db.Post `json:"upcoming"`
}

// PublishService 执行到期排期文章的批量发布，定时任务与手动触发共用同一实现。
type PublishService struct {
	store *db.PostStore
	clock clock.Clock
}

// NewPublishService 创建 PublishService
func NewPublishService(gdb *gorm.DB, clk clock.Clock) *PublishService {
	if clk == nil {
		clk = clock.System{}
	}
	return &PublishService{store: db.NewPostStore(gdb), clock: clk}
}

// RunDuePublishScan 以单条条件更新发布所有 scheduled_time <= 当前时间的排期文章。
// 已发布的文章不再满足条件，因此重复或并发执行不会重复计数。
func (s *PublishService) RunDuePublishScan(ctx context.Context) (ScanResult, error) {
	now := s.clock.Now()
	nowStr := clock.Format(now)

	count, err := s.store.PublishDue(ctx, nowStr, now)
	if err != nil {
		return ScanResult{Now: nowStr}, storeError(err)
	}
	return ScanResult{Published: count, Now: nowStr}, nil
}

// Snapshot 返回当前时间、已到期数量以及最近的排期文章
func (s *PublishService) Snapshot(ctx context.Context, limit int) (SchedulerSnapshot, error) {
	nowStr := clock.NowString(s.clock)

	due, err := s.store.CountDue(ctx, nowStr)
	if err != nil {
		return SchedulerSnapshot{Now: nowStr}, storeError(err)
	}
	upcoming, err := s.store.ListScheduled(ctx, limit)
	if err != nil {
		return SchedulerSnapshot{Now: nowStr}, storeError(err)
	}
	return SchedulerSnapshot{Now: nowStr, Due: due, Upcoming: upcoming}, nil
}
