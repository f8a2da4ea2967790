package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/logger"
	"github.com/smms/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// serviceErrors 将业务错误映射为 HTTP 状态码与提示信息，按顺序匹配。
var serviceErrors = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrPostNotFound, http.StatusNotFound, "文章不存在"},
	{service.ErrPostImmutable, http.StatusForbidden, "已发布的文章不能修改"},
	{service.ErrPostConflict, http.StatusConflict, "文章已被其他操作修改，请刷新后重试"},
	{service.ErrScheduleRequired, http.StatusBadRequest, "请填写排期时间"},
	{service.ErrScheduleFormat, http.StatusBadRequest, "排期时间格式应为 YYYY-MM-DDTHH:MM:SS"},
	{service.ErrScheduleInPast, http.StatusBadRequest, "排期时间必须晚于当前时间"},
	{service.ErrInvalidSchedule, http.StatusBadRequest, "排期时间无效"},
	{service.ErrInvalidStatus, http.StatusBadRequest, "无效的文章状态"},
	{service.ErrContentRequired, http.StatusBadRequest, "内容不能为空"},
	{service.ErrContentTooLong, http.StatusBadRequest, "内容不能超过 5000 个字符"},
	{service.ErrTitleTooLong, http.StatusBadRequest, "标题不能超过 200 个字符"},
	{service.ErrUserNotFound, http.StatusNotFound, "用户不存在"},
	{service.ErrEmailInvalid, http.StatusBadRequest, "邮箱格式不正确"},
	{service.ErrEmailTaken, http.StatusConflict, "该邮箱已注册"},
	{service.ErrPasswordTooWeak, http.StatusBadRequest, "密码至少 6 位且需同时包含字母和数字"},
	{service.ErrPasswordMismatch, http.StatusBadRequest, "两次输入的密码不一致"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "邮箱或密码错误"},
	{service.ErrAccountInactive, http.StatusForbidden, "账号已停用"},
	{service.ErrCannotModifySelf, http.StatusBadRequest, "不能修改自己的账号"},
	{service.ErrAlreadyAdmin, http.StatusBadRequest, "该用户已是管理员"},
	{service.ErrNotAdmin, http.StatusBadRequest, "该用户不是管理员"},
	{service.ErrImageTooLarge, http.StatusBadRequest, "图片大小超过限制"},
	{service.ErrImageUnsupported, http.StatusBadRequest, "不支持的图片格式"},
	{service.ErrBackupNotFound, http.StatusNotFound, "备份文件不存在"},
	{service.ErrInvalidBackupName, http.StatusBadRequest, "无效的备份文件名"},
}

// respondServiceError 输出业务错误；无法识别的错误记录日志并返回通用提示。
func respondServiceError(c *gin.Context, err error, fallback string) {
	for _, mapping := range serviceErrors {
		if errors.Is(err, mapping.err) {
			c.JSON(mapping.status, gin.H{"error": mapping.message})
			return
		}
	}
	logger.Errorw("request_failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"request_id", c.GetString(requestIDContextKey),
		"error", err,
	)
	respondError(c, http.StatusInternalServerError, fallback)
}
