package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/logger"
)

const schedulerDebugLimit = 20

// AdminOverview 返回系统统计与全部用户
func (a *API) AdminOverview(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := a.users.Stats(ctx)
	if err != nil {
		respondServiceError(c, err, "获取统计失败")
		return
	}
	users, err := a.users.List(ctx)
	if err != nil {
		respondServiceError(c, err, "获取用户列表失败")
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, newUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats, "users": items})
}

// ActivateUser 启用账号
func (a *API) ActivateUser(c *gin.Context) {
	a.userAction(c, "activate", "账号已启用", func(ctx context.Context, actorID, userID uint) error {
		return a.users.Activate(ctx, userID)
	})
}

// DeactivateUser 停用账号，不能停用自己
func (a *API) DeactivateUser(c *gin.Context) {
	a.userAction(c, "deactivate", "账号已停用", a.users.Deactivate)
}

// PromoteUser 授予管理员权限
func (a *API) PromoteUser(c *gin.Context) {
	a.userAction(c, "promote", "已设为管理员", func(ctx context.Context, actorID, userID uint) error {
		return a.users.Promote(ctx, userID)
	})
}

// DemoteUser 撤销管理员权限，不能撤销自己
func (a *API) DemoteUser(c *gin.Context) {
	a.userAction(c, "demote", "已取消管理员", a.users.Demote)
}

func (a *API) userAction(c *gin.Context, action, message string, fn func(ctx context.Context, actorID, userID uint) error) {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的用户ID")
		return
	}

	actorID := currentUserID(c)
	if err := fn(c.Request.Context(), actorID, userID); err != nil {
		respondServiceError(c, err, "操作失败")
		return
	}

	logger.Infow("admin_user_"+action, "actor_id", actorID, "user_id", userID)
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// PublishScheduled 管理员手动触发全站到期扫描
func (a *API) PublishScheduled(c *gin.Context) {
	result, err := a.publisher.RunDuePublishScan(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "自动发布失败")
		return
	}

	logger.Infow("admin_publish_scan", "actor_id", currentUserID(c), "count", result.Published, "now", result.Now)
	c.JSON(http.StatusOK, gin.H{
		"message":   "自动发布完成",
		"published": result.Published,
		"now":       result.Now,
	})
}

// DebugScheduler 展示当前时间、到期数量、即将发布的文章以及调度器运行统计
func (a *API) DebugScheduler(c *gin.Context) {
	snapshot, err := a.publisher.Snapshot(c.Request.Context(), schedulerDebugLimit)
	if err != nil {
		respondServiceError(c, err, "获取调度状态失败")
		return
	}

	resp := gin.H{
		"now":      snapshot.Now,
		"due":      snapshot.Due,
		"upcoming": newPostListResponse(snapshot.Upcoming),
	}
	if a.scheduler != nil {
		stats := a.scheduler.Stats()
		resp["scheduler"] = gin.H{
			"running":        stats.Running,
			"interval":       stats.Interval.String(),
			"runs":           stats.Runs,
			"failures":       stats.Failures,
			"published":      stats.Published,
			"last_run_at":    stats.LastRunAt,
			"last_published": stats.LastPublished,
			"last_error":     stats.LastError,
		}
	} else {
		resp["scheduler"] = gin.H{"running": false}
	}
	c.JSON(http.StatusOK, resp)
}
