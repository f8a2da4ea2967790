package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User 定义了用户模型
type User struct {
	gorm.Model
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"size:16;not null;default:user"`
	IsActive     bool   `gorm:"not null"`
}

// IsAdmin 判断是否为管理员
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// EnsureAdmin 存在性检查：若提供的邮箱与密码均非空且不存在对应账号，则创建一个 bcrypt 哈希的管理员。
// 返回值表示是否新建了账号。
func EnsureAdmin(gdb *gorm.DB, email, password string, cost int) (bool, error) {
	trimmedEmail := strings.ToLower(strings.TrimSpace(email))
	if trimmedEmail == "" || password == "" {
		return false, nil
	}

	if gdb == nil {
		return false, errors.New("database not initialized")
	}

	var existing User
	if err := gdb.Where("email = ?", trimmedEmail).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, err
		}

		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			cost = bcrypt.DefaultCost
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
		if err != nil {
			return false, err
		}

		admin := User{
			Email:        trimmedEmail,
			PasswordHash: string(hashed),
			Role:         RoleAdmin,
			IsActive:     true,
		}
		if err := gdb.Create(&admin).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	return false, nil
}
