package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/smms/internal/clock"
	"github.com/smms/internal/config"
	"github.com/smms/internal/db"
	"github.com/smms/internal/service"
	"gorm.io/gorm"
)

const (
	demoUserEmail    = "demo@smms.local"
	demoUserPassword = "demo1234"
)

type seedSummary struct {
	Skipped   bool
	Drafts    int
	Scheduled int
	Published int
}

type demoPost struct {
	title   string
	content string
	status  string
	// offset 为相对当前时间的排期偏移，仅 scheduled 使用
	offset time.Duration
}

var demoPosts = []demoPost{
	{title: "新品发布预告", content: "下周一我们将发布全新系列，敬请期待！", status: db.PostStatusScheduled, offset: time.Hour},
	{title: "周末活动", content: "本周末线下快闪店开放，**前 100 名**到店送礼品。", status: db.PostStatusScheduled, offset: 24 * time.Hour},
	{title: "月度总结", content: "回顾本月的社区增长与精彩内容。\n\n- 新增关注 1200\n- 互动率提升 18%", status: db.PostStatusScheduled, offset: 7 * 24 * time.Hour},
	{title: "品牌故事草稿", content: "我们为什么开始做这件事？还在整理中……", status: db.PostStatusDraft},
	{title: "节日海报文案", content: "节日快乐！配图待定。", status: db.PostStatusDraft},
	{title: "你好，世界", content: "这是我们在新平台上的第一条动态。", status: db.PostStatusPublished},
	{title: "使用技巧", content: "排期发布可以让内容在最佳时段自动上线。", status: db.PostStatusPublished},
}

// 演示数据生成器
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败:", err)
	}
	gdb, err := db.Init(cfg.Database.Driver, cfg.Database.DSN, db.PoolOptions{})
	if err != nil {
		log.Fatal("数据库初始化失败:", err)
	}
	defer func() { _ = db.Close(gdb) }()

	fmt.Println("开始生成演示数据...")

	summary, err := seedDemoData(context.Background(), gdb, clock.System{}, cfg.Security.BcryptCost)
	if err != nil {
		log.Fatal("生成演示数据失败:", err)
	}
	if summary.Skipped {
		fmt.Println("演示文章已存在，跳过创建")
		return
	}

	fmt.Println("演示数据生成完成！")
	fmt.Printf("用户: %s (密码: %s)\n", demoUserEmail, demoUserPassword)
	fmt.Printf("文章: 草稿 %d 篇，排期 %d 篇，已发布 %d 篇\n", summary.Drafts, summary.Scheduled, summary.Published)
}

// seedDemoData 创建演示用户及各状态的文章；该用户已有文章时不做任何修改
func seedDemoData(ctx context.Context, gdb *gorm.DB, clk clock.Clock, cost int) (seedSummary, error) {
	user, err := ensureDemoUser(ctx, gdb, cost)
	if err != nil {
		return seedSummary{}, err
	}

	var count int64
	if err := gdb.WithContext(ctx).Model(&db.Post{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
		return seedSummary{}, err
	}
	if count > 0 {
		return seedSummary{Skipped: true}, nil
	}

	posts := service.NewPostService(gdb, clk)
	var summary seedSummary
	for _, item := range demoPosts {
		input := service.PostInput{Title: item.title, Content: item.content, Status: item.status}
		if item.status == db.PostStatusScheduled {
			input.ScheduledTime = clock.Format(clk.Now().Add(item.offset))
		}
		if _, err := posts.Create(ctx, user.ID, input); err != nil {
			return summary, fmt.Errorf("create %q: %w", item.title, err)
		}
		switch item.status {
		case db.PostStatusDraft:
			summary.Drafts++
		case db.PostStatusScheduled:
			summary.Scheduled++
		case db.PostStatusPublished:
			summary.Published++
		}
	}
	return summary, nil
}

func ensureDemoUser(ctx context.Context, gdb *gorm.DB, cost int) (*db.User, error) {
	users := service.NewUserService(gdb, cost)
	user, err := users.Register(ctx, service.RegisterInput{
		Email:           demoUserEmail,
		Password:        demoUserPassword,
		ConfirmPassword: demoUserPassword,
	})
	if err == nil {
		fmt.Println("✅ 演示用户创建完成")
		return user, nil
	}
	if !errors.Is(err, service.ErrEmailTaken) {
		return nil, err
	}

	var existing db.User
	if err := gdb.WithContext(ctx).Where("email = ?", demoUserEmail).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}
