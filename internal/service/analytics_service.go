package service

import (
	"context"
	"time"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/db"
	"gorm.io/gorm"
)

const analyticsMonths = 12

// AnalyticsService 负责用户维度的文章统计。
type AnalyticsService struct {
	store *db.PostStore
	clock clock.Clock
}

// PostCounts 按状态汇总的文章数量
type PostCounts struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Scheduled int64 `json:"scheduled"`
	Draft     int64 `json:"draft"`
}

// MonthlyCounts 单个月份内按状态统计的新建文章数量
type MonthlyCounts struct {
	Month     string `json:"month"`
	Published int64  `json:"published"`
	Scheduled int64  `json:"scheduled"`
	Draft     int64  `json:"draft"`
}

// UserAnalytics 汇总用户统计数据
type UserAnalytics struct {
	Counts  PostCounts      `json:"counts"`
	Monthly []MonthlyCounts `json:"monthly"`
}

// NewAnalyticsService 创建 AnalyticsService
func NewAnalyticsService(gdb *gorm.DB, clk clock.Clock) *AnalyticsService {
	if clk == nil {
		clk = clock.System{}
	}
	return &AnalyticsService{store: db.NewPostStore(gdb), clock: clk}
}

// Counts 返回用户各状态的文章数量
func (s *AnalyticsService) Counts(ctx context.Context, userID uint) (PostCounts, error) {
	byStatus, err := s.store.CountByStatus(ctx, userID)
	if err != nil {
		return PostCounts{}, storeError(err)
	}
	counts := PostCounts{
		Published: byStatus[db.PostStatusPublished],
		Scheduled: byStatus[db.PostStatusScheduled],
		Draft:     byStatus[db.PostStatusDraft],
	}
	counts.Total = counts.Published + counts.Scheduled + counts.Draft
	return counts, nil
}

// ForUser 返回用户的总计与最近 12 个月的按月统计，月份升序且不缺月。
// 按月分组在内存中完成，不依赖特定数据库的日期函数。
func (s *AnalyticsService) ForUser(ctx context.Context, userID uint) (UserAnalytics, error) {
	counts, err := s.Counts(ctx, userID)
	if err != nil {
		return UserAnalytics{}, err
	}

	now := s.clock.Now()
	firstMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(analyticsMonths - 1), 0)

	posts, err := s.store.ListCreatedSince(ctx, userID, firstMonth)
	if err != nil {
		return UserAnalytics{}, storeError(err)
	}

	monthly := make([]MonthlyCounts, analyticsMonths)
	index := make(map[string]int, analyticsMonths)
	for i := 0; i < analyticsMonths; i++ {
		key := firstMonth.AddDate(0, i, 0).Format("2006-01")
		monthly[i] = MonthlyCounts{Month: key}
		index[key] = i
	}

	for _, post := range posts {
		i, ok := index[post.CreatedAt.In(now.Location()).Format("2006-01")]
		if !ok {
			continue
		}
		switch post.Status {
		case db.PostStatusPublished:
			monthly[i].Published++
		case db.PostStatusScheduled:
			monthly[i].Scheduled++
		case db.PostStatusDraft:
			monthly[i].Draft++
		}
	}

	return UserAnalytics{Counts: counts, Monthly: monthly}, nil
}
