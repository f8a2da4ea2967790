package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/smms/internal/db"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailInvalid       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooWeak    = errors.New("password must be at least 6 characters and contain letters and numbers")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrCannotModifySelf   = errors.New("cannot change your own account")
	ErrAlreadyAdmin       = errors.New("user is already an admin")
	ErrNotAdmin           = errors.New("user is not an admin")
)

const (
	minPasswordLength       = 6
	defaultPasswordHashCost = 12
)

// UserService 负责注册、登录校验与管理员对账号的操作
type UserService struct {
	db   *gorm.DB
	cost int
}

// RegisterInput 注册参数
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// SystemStats 管理后台统计
type SystemStats struct {
	TotalUsers     int64 `json:"total_users"`
	AdminCount     int64 `json:"admin_count"`
	TotalPosts     int64 `json:"total_posts"`
	PublishedPosts int64 `json:"published_posts"`
	ScheduledPosts int64 `json:"scheduled_posts"`
	DraftPosts     int64 `json:"draft_posts"`
}

// NewUserService 创建 UserService，cost 非法时使用 12
func NewUserService(gdb *gorm.DB, cost int) *UserService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultPasswordHashCost
	}
	return &UserService{db: gdb, cost: cost}
}

// Register 创建普通用户
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*db.User, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if !strongEnough(input.Password) {
		return nil, ErrPasswordTooWeak
	}
	if input.Password != input.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, storeError(err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := db.User{
		Email:        email,
		PasswordHash: string(hashed),
		Role:         db.RoleUser,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, storeError(err)
	}
	return &user, nil
}

// Authenticate 校验邮箱与密码。未知邮箱与错误密码返回同一个错误。
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*db.User, error) {
	normalized, err := normalizeEmail(email)
	if err != nil || password == "" {
		return nil, ErrInvalidCredentials
	}

	var user db.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeError(err)
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// Get 按 ID 读取用户
func (s *UserService) Get(ctx context.Context, id uint) (*db.User, error) {
	var user db.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, storeError(err)
	}
	return &user, nil
}

// List 按注册时间倒序列出全部用户
func (s *UserService) List(ctx context.Context) ([]db.User, error) {
	var users []db.User
	if err := s.db.WithContext(ctx).Order("created_at desc").Order("id desc").Find(&users).Error; err != nil {
		return nil, storeError(err)
	}
	return users, nil
}

// Stats 汇总用户与文章数量
func (s *UserService) Stats(ctx context.Context) (SystemStats, error) {
	var stats SystemStats
	gdb := s.db.WithContext(ctx)

	if err := gdb.Model(&db.User{}).Count(&stats.TotalUsers).Error; err != nil {
		return stats, storeError(err)
	}
	if err := gdb.Model(&db.User{}).Where("role = ?", db.RoleAdmin).Count(&stats.AdminCount).Error; err != nil {
		return stats, storeError(err)
	}

	counts, err := db.NewPostStore(s.db).CountByStatus(ctx, 0)
	if err != nil {
		return stats, storeError(err)
	}
	stats.PublishedPosts = counts[db.PostStatusPublished]
	stats.ScheduledPosts = counts[db.PostStatusScheduled]
	stats.DraftPosts = counts[db.PostStatusDraft]
	stats.TotalPosts = stats.PublishedPosts + stats.ScheduledPosts + stats.DraftPosts
	return stats, nil
}

// Activate 启用账号
func (s *UserService) Activate(ctx context.Context, userID uint) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.update(ctx, userID, "is_active", true)
}

// Deactivate 停用账号，管理员不能停用自己
func (s *UserService) Deactivate(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return ErrCannotModifySelf
	}
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.update(ctx, userID, "is_active", false)
}

// Promote 将普通用户提升为管理员
func (s *UserService) Promote(ctx context.Context, userID uint) error {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		return ErrAlreadyAdmin
	}
	return s.update(ctx, userID, "role", db.RoleAdmin)
}

// Demote 将管理员降级为普通用户，管理员不能降级自己
func (s *UserService) Demote(ctx context.Context, actorID, userID uint) error {
	if actorID == userID {
		return ErrCannotModifySelf
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsAdmin() {
		return ErrNotAdmin
	}
	return s.update(ctx, userID, "role", db.RoleUser)
}

func (s *UserService) update(ctx context.Context, userID uint, column string, value interface{}) error {
	if err := s.db.WithContext(ctx).Model(&db.User{}).Where("id = ?", userID).Update(column, value).Error; err != nil {
		return storeError(err)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrEmailInvalid
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrEmailInvalid
	}
	return email, nil
}

func strongEnough(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}
