package db

import "time"

// 文章状态
const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
)

// Post 定义了文章模型。
// ScheduledTime 以规范本地时间字符串保存，见 clock.Layout；发布后保留原排期时间。
// 删除为物理删除，因此不使用 gorm.Model。
type Post struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"not null;index"`
	User          User
	Title         string  `gorm:"size:200"`
	Content       string  `gorm:"type:text;not null"`
	ImagePath     string  `gorm:"size:255"`
	Status        string  `gorm:"size:16;not null;default:draft;index"`
	ScheduledTime *string `gorm:"size:19;index"`
	PublishedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsPublished 判断文章是否已发布
func (p Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// ScheduledTimeValue 返回排期时间，未设置时为空字符串
func (p Post) ScheduledTimeValue() string {
	if p.ScheduledTime == nil {
		return ""
	}
	return *p.ScheduledTime
}

// ValidPostStatus 判断状态值是否合法
func ValidPostStatus(status string) bool {
	switch status {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished:
		return true
	default:
		return false
	}
}
