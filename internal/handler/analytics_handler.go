package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dashboardRecentLimit = 5

// Dashboard 返回当前用户的概览：账号、各状态数量与最近的文章
func (a *API) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	user := currentUser(c)

	counts, err := a.analytics.Counts(ctx, user.ID)
	if err != nil {
		respondServiceError(c, err, "获取概览失败")
		return
	}
	posts, err := a.posts.List(ctx, user.ID, "")
	if err != nil {
		respondServiceError(c, err, "获取概览失败")
		return
	}
	if len(posts) > dashboardRecentLimit {
		posts = posts[:dashboardRecentLimit]
	}

	c.JSON(http.StatusOK, gin.H{
		"user":         newUserResponse(user),
		"counts":       counts,
		"recent_posts": newPostListResponse(posts),
	})
}

// Analytics 返回当前用户的文章统计与最近 12 个月的趋势
func (a *API) Analytics(c *gin.Context) {
	stats, err := a.analytics.ForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "获取统计数据失败")
		return
	}
	c.JSON(http.StatusOK, stats)
}
