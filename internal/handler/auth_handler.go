package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/smms/internal/db"
	"github.com/smms/internal/logger"
	"github.com/smms/internal/service"
)

const (
	sessionUserIDKey      = "user_id"
	sessionActivityKey    = "last_activity"
	currentUserContextKey = "current_user"
)

type registerRequest struct {
	Email           string `json:"email" form:"email" binding:"required"`
	Password        string `json:"password" form:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" form:"email" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type userResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserResponse(user *db.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
}

// Register 注册新用户，注册后需要重新登录
func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请填写邮箱、密码与确认密码")
		return
	}

	user, err := a.users.Register(c.Request.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		respondServiceError(c, err, "注册失败")
		return
	}

	logger.Infow("user_registered", "user_id", user.ID, "client_ip", c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{"message": "注册成功，请登录", "user": newUserResponse(user)})
}

// Login 校验邮箱密码并建立会话，连续失败会被限流锁定
func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "请填写邮箱和密码")
		return
	}

	ctx := c.Request.Context()
	key := service.LoginLimitKey(req.Email, c.ClientIP())

	status, err := a.limiter.Check(ctx, key)
	if err != nil {
		logger.Warnw("login_limiter_unavailable", "error", err)
	} else if status.Locked {
		respondLocked(c, status)
		return
	}

	user, err := a.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			a.recordLoginFailure(c, key)
			return
		}
		logger.Warnw("login_rejected", "email", req.Email, "client_ip", c.ClientIP(), "error", err)
		respondServiceError(c, err, "登录失败")
		return
	}

	if err := a.limiter.Reset(ctx, key); err != nil {
		logger.Warnw("login_limiter_reset_failed", "error", err)
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionActivityKey, a.clock.Now().Unix())
	if err := session.Save(); err != nil {
		respondServiceError(c, err, "登录失败")
		return
	}

	logger.Infow("login_succeeded", "user_id", user.ID, "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"message": "登录成功", "user": newUserResponse(user)})
}

func (a *API) recordLoginFailure(c *gin.Context, key string) {
	status, err := a.limiter.Fail(c.Request.Context(), key)
	if err != nil {
		logger.Warnw("login_limiter_unavailable", "error", err)
		respondError(c, http.StatusUnauthorized, "邮箱或密码错误")
		return
	}
	if status.Locked {
		logger.Warnw("login_locked", "client_ip", c.ClientIP(), "retry_after_seconds", retryAfterSeconds(status.RetryAfter))
		respondLocked(c, status)
		return
	}
	c.JSON(http.StatusUnauthorized, gin.H{
		"error":              "邮箱或密码错误",
		"remaining_attempts": status.Remaining,
	})
}

func respondLocked(c *gin.Context, status service.LoginLimitStatus) {
	seconds := retryAfterSeconds(status.RetryAfter)
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       "登录失败次数过多，请稍后再试",
		"retry_after": seconds,
	})
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// Logout 清除会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondServiceError(c, err, "退出失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// AuthRequired 校验登录态并实现滚动的空闲超时，超时后需重新登录
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserIDKey).(uint)
		if !ok || userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录"})
			return
		}

		now := a.clock.Now()
		last, ok := session.Get(sessionActivityKey).(int64)
		if !ok || now.Sub(time.Unix(last, 0)) > a.sessionTimeout {
			session.Clear()
			_ = session.Save()
			logger.Infow("session_expired", "user_id", userID)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "会话已过期，请重新登录"})
			return
		}

		user, err := a.users.Get(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, service.ErrUserNotFound) {
			respondServiceError(c, err, "读取用户失败")
			c.Abort()
			return
		}
		if err != nil || !user.IsActive {
			session.Clear()
			_ = session.Save()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "账号不可用，请重新登录"})
			return
		}

		session.Set(sessionActivityKey, now.Unix())
		if err := session.Save(); err != nil {
			logger.Warnw("session_save_failed", "user_id", userID, "error", err)
		}
		c.Set(currentUserContextKey, user)
		c.Next()
	}
}

// AdminRequired 需挂在 AuthRequired 之后，仅允许管理员访问
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || !user.IsAdmin() {
			logger.Warnw("admin_access_denied", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *db.User {
	value, exists := c.Get(currentUserContextKey)
	if !exists {
		return nil
	}
	user, _ := value.(*db.User)
	return user
}

func currentUserID(c *gin.Context) uint {
	if user := currentUser(c); user != nil {
		return user.ID
	}
	return 0
}
