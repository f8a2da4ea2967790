package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// DuePredicate 是自动发布与手动触发共用的到期判定条件。
const DuePredicate = "status = ? AND scheduled_time IS NOT NULL AND scheduled_time <= ?"

// PostCondition 限定单篇文章更新或删除的前置条件。
// OwnerID 为 0 时不校验归属，Statuses 为空时不校验状态。
type PostCondition struct {
	ID       uint
	OwnerID  uint
	Statuses []string
}

func (c PostCondition) apply(query *gorm.DB) *gorm.DB {
	query = query.Where("id = ?", c.ID)
	if c.OwnerID != 0 {
		query = query.Where("user_id = ?", c.OwnerID)
	}
	if len(c.Statuses) == 1 {
		query = query.Where("status = ?", c.Statuses[0])
	} else if len(c.Statuses) > 1 {
		query = query.Where("status IN ?", c.Statuses)
	}
	return query
}

// PostStore 封装文章表的持久化操作，所有写入都以条件更新的方式完成。
type PostStore struct {
	db *gorm.DB
}

// NewPostStore 创建 PostStore
func NewPostStore(gdb *gorm.DB) *PostStore {
	return &PostStore{db: gdb}
}

// WithTx 返回绑定到事务的 PostStore
func (s *PostStore) WithTx(tx *gorm.DB) *PostStore {
	return &PostStore{db: tx}
}

// Transaction 在单个事务中执行 fn
func (s *PostStore) Transaction(ctx context.Context, fn func(store *PostStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.WithTx(tx))
	})
}

// Insert 写入新文章并回填 ID
func (s *PostStore) Insert(ctx context.Context, post *Post) error {
	return s.db.WithContext(ctx).Omit("User").Create(post).Error
}

// Get 按 ID 读取文章，不存在时返回 gorm.ErrRecordNotFound
func (s *PostStore) Get(ctx context.Context, id uint) (*Post, error) {
	var post Post
	if err := s.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// GetWithAuthor 读取文章并预加载作者
func (s *PostStore) GetWithAuthor(ctx context.Context, id uint) (*Post, error) {
	var post Post
	if err := s.db.WithContext(ctx).Preload("User").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdateWhere 在满足条件时更新字段，返回受影响行数
func (s *PostStore) UpdateWhere(ctx context.Context, cond PostCondition, fields map[string]interface{}) (int64, error) {
	result := cond.apply(s.db.WithContext(ctx).Model(&Post{})).Updates(fields)
	return result.RowsAffected, result.Error
}

// DeleteWhere 在满足条件时删除文章，返回受影响行数
func (s *PostStore) DeleteWhere(ctx context.Context, cond PostCondition) (int64, error) {
	result := cond.apply(s.db.WithContext(ctx)).Delete(&Post{})
	return result.RowsAffected, result.Error
}

// BulkUpdateWhere 以单条 UPDATE 语句批量更新满足条件的文章
func (s *PostStore) BulkUpdateWhere(ctx context.Context, fields map[string]interface{}, query string, args ...interface{}) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Post{}).Where(query, args...).Updates(fields)
	return result.RowsAffected, result.Error
}

// PublishDue 将所有到期的排期文章转为已发布，返回本次发布数量。
// 条件中包含 status，重复执行不会再次命中已发布的文章。
func (s *PostStore) PublishDue(ctx context.Context, now string, publishedAt time.Time) (int64, error) {
	return s.BulkUpdateWhere(ctx, map[string]interface{}{
		"status":       PostStatusPublished,
		"published_at": publishedAt,
		"updated_at":   publishedAt,
	}, DuePredicate, PostStatusScheduled, now)
}

// CountDue 统计当前已到期但尚未发布的文章数量
func (s *PostStore) CountDue(ctx context.Context, now string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Post{}).
		Where(DuePredicate, PostStatusScheduled, now).
		Count(&count).Error
	return count, err
}

// ListScheduled 按排期时间升序列出待发布文章
func (s *PostStore) ListScheduled(ctx context.Context, limit int) ([]Post, error) {
	var posts []Post
	query := s.db.WithContext(ctx).
		Where("status = ?", PostStatusScheduled).
		Order("scheduled_time asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ListByOwner 列出用户指定状态的文章，statuses 为空时返回全部
func (s *PostStore) ListByOwner(ctx context.Context, ownerID uint, statuses []string, orders ...string) ([]Post, error) {
	var posts []Post
	query := s.db.WithContext(ctx).Where("user_id = ?", ownerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if len(orders) == 0 {
		orders = []string{"created_at desc", "id desc"}
	}
	for _, order := range orders {
		query = query.Order(order)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// StatusCount 状态计数
type StatusCount struct {
	Status string
	Count  int64
}

// CountByStatus 按状态统计文章，ownerID 为 0 时统计全站
func (s *PostStore) CountByStatus(ctx context.Context, ownerID uint) (map[string]int64, error) {
	var rows []StatusCount
	query := s.db.WithContext(ctx).Model(&Post{}).Select("status, COUNT(*) AS count")
	if ownerID != 0 {
		query = query.Where("user_id = ?", ownerID)
	}
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[string]int64{
		PostStatusDraft:     0,
		PostStatusScheduled: 0,
		PostStatusPublished: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// ListCreatedSince 返回用户在 since 之后创建的文章的状态与创建时间
func (s *PostStore) ListCreatedSince(ctx context.Context, ownerID uint, since time.Time) ([]Post, error) {
	var posts []Post
	err := s.db.WithContext(ctx).
		Select("id", "status", "created_at").
		Where("user_id = ? AND created_at >= ?", ownerID, since).
		Order("created_at asc").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}
