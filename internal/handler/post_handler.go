package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/db"
	"github.com/smms/internal/logger"
	"github.com/smms/internal/service"
)

type createPostRequest struct {
	Title         string `json:"title" form:"title"`
	Content       string `json:"content" form:"content"`
	ImagePath     string `json:"image_path" form:"image_path"`
	Status        string `json:"status" form:"status"`
	ScheduledTime string `json:"scheduled_time" form:"scheduled_time"`
}

type updatePostRequest struct {
	Title         *string `json:"title" form:"title"`
	Content       *string `json:"content" form:"content"`
	ImagePath     *string `json:"image_path" form:"image_path"`
	Status        *string `json:"status" form:"status"`
	ScheduledTime *string `json:"scheduled_time" form:"scheduled_time"`
	RemoveImage   bool    `json:"remove_image" form:"remove_image"`
}

type scheduleRequest struct {
	ScheduledTime string `json:"scheduled_time"`
}

type postResponse struct {
	ID            uint       `json:"id"`
	UserID        uint       `json:"user_id"`
	Author        string     `json:"author,omitempty"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	ContentHTML   string     `json:"content_html,omitempty"`
	ImagePath     string     `json:"image_path"`
	Status        string     `json:"status"`
	ScheduledTime *string    `json:"scheduled_time"`
	PublishedAt   *time.Time `json:"published_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newPostResponse(post *db.Post) postResponse {
	return postResponse{
		ID:            post.ID,
		UserID:        post.UserID,
		Author:        post.User.Email,
		Title:         post.Title,
		Content:       post.Content,
		ImagePath:     post.ImagePath,
		Status:        post.Status,
		ScheduledTime: post.ScheduledTime,
		PublishedAt:   post.PublishedAt,
		CreatedAt:     post.CreatedAt,
		UpdatedAt:     post.UpdatedAt,
	}
}

func newPostListResponse(posts []db.Post) []postResponse {
	items := make([]postResponse, 0, len(posts))
	for i := range posts {
		items = append(items, newPostResponse(&posts[i]))
	}
	return items
}

// ListPosts 列出当前用户的文章，可按 status 过滤
func (a *API) ListPosts(c *gin.Context) {
	posts, err := a.posts.List(c.Request.Context(), currentUserID(c), c.Query("status"))
	if err != nil {
		respondServiceError(c, err, "获取文章列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": newPostListResponse(posts), "total": len(posts)})
}

// ListDrafts 列出当前用户的草稿
func (a *API) ListDrafts(c *gin.Context) {
	posts, err := a.posts.ListDrafts(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "获取草稿失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": newPostListResponse(posts), "total": len(posts)})
}

// ListScheduled 列出排期与已发布文章，按排期时间倒序
func (a *API) ListScheduled(c *gin.Context) {
	posts, err := a.posts.ListSchedule(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "获取排期失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": newPostListResponse(posts), "total": len(posts)})
}

// GetPost 获取单篇文章，已发布文章对所有登录用户可见
func (a *API) GetPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	post, err := a.posts.Get(c.Request.Context(), id, currentUserID(c))
	if err != nil {
		respondServiceError(c, err, "获取文章失败")
		return
	}

	resp := newPostResponse(post)
	resp.ContentHTML, err = service.RenderMarkdown(post.Content)
	if err != nil {
		respondServiceError(c, err, "渲染文章失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": resp})
}

// CreatePost 创建文章，支持 JSON 或携带 image 文件的 multipart 表单
func (a *API) CreatePost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求数据")
		return
	}
	if !a.validImagePath(req.ImagePath) {
		respondError(c, http.StatusBadRequest, "无效的图片路径")
		return
	}

	uploaded, ok := a.saveRequestImage(c)
	if !ok {
		return
	}
	imagePath := req.ImagePath
	if uploaded != "" {
		imagePath = uploaded
	}

	userID := currentUserID(c)
	post, err := a.posts.Create(c.Request.Context(), userID, service.PostInput{
		Title:         req.Title,
		Content:       req.Content,
		ImagePath:     imagePath,
		Status:        req.Status,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		a.discardImage(uploaded)
		respondServiceError(c, err, "创建文章失败")
		return
	}

	logger.Infow("post_created", "post_id", post.ID, "user_id", userID, "status", post.Status)
	c.JSON(http.StatusCreated, gin.H{"message": "文章已创建", "post": newPostResponse(post)})
}

// UpdatePost 编辑草稿或排期文章，已发布文章不可修改
func (a *API) UpdatePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	var req updatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "无效的请求数据")
		return
	}
	if req.ImagePath != nil && !a.validImagePath(*req.ImagePath) {
		respondError(c, http.StatusBadRequest, "无效的图片路径")
		return
	}

	ctx := c.Request.Context()
	userID := currentUserID(c)
	existing, err := a.posts.GetOwned(ctx, id, userID)
	if err != nil {
		respondServiceError(c, err, "更新文章失败")
		return
	}

	uploaded, ok := a.saveRequestImage(c)
	if !ok {
		return
	}

	update := service.PostUpdate{
		Title:         req.Title,
		Content:       req.Content,
		ImagePath:     req.ImagePath,
		Status:        req.Status,
		ScheduledTime: req.ScheduledTime,
	}
	switch {
	case uploaded != "":
		update.ImagePath = &uploaded
	case req.RemoveImage:
		empty := ""
		update.ImagePath = &empty
	}

	post, err := a.posts.Edit(ctx, id, userID, update)
	if err != nil {
		a.discardImage(uploaded)
		respondServiceError(c, err, "更新文章失败")
		return
	}
	if existing.ImagePath != "" && existing.ImagePath != post.ImagePath {
		a.discardImage(existing.ImagePath)
	}

	logger.Infow("post_updated", "post_id", post.ID, "user_id", userID, "status", post.Status)
	c.JSON(http.StatusOK, gin.H{"message": "文章已更新", "post": newPostResponse(post)})
}

// DeletePost 删除草稿或排期文章及其图片
func (a *API) DeletePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	userID := currentUserID(c)
	post, err := a.posts.Delete(c.Request.Context(), id, userID)
	if err != nil {
		respondServiceError(c, err, "删除文章失败")
		return
	}
	a.discardImage(post.ImagePath)

	logger.Infow("post_deleted", "post_id", id, "user_id", userID)
	c.JSON(http.StatusOK, gin.H{"message": "文章已删除"})
}

// SchedulePost 为草稿或排期文章设置未来的发布时间
func (a *API) SchedulePost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	var req scheduleRequest
	if !bindJSON(c, &req, "无效的请求数据") {
		return
	}

	userID := currentUserID(c)
	post, err := a.posts.Schedule(c.Request.Context(), id, userID, req.ScheduledTime)
	if err != nil {
		respondServiceError(c, err, "排期失败")
		return
	}

	logger.Infow("post_scheduled", "post_id", post.ID, "user_id", userID, "scheduled_time", post.ScheduledTimeValue())
	c.JSON(http.StatusOK, gin.H{"message": "文章已排期", "post": newPostResponse(post)})
}

// PublishPost 立即发布草稿或排期文章
func (a *API) PublishPost(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, "无效的文章ID")
		return
	}

	userID := currentUserID(c)
	post, err := a.posts.Publish(c.Request.Context(), id, userID)
	if err != nil {
		respondServiceError(c, err, "发布失败")
		return
	}

	logger.Infow("post_published", "post_id", post.ID, "user_id", userID)
	c.JSON(http.StatusOK, gin.H{"message": "文章已发布", "post": newPostResponse(post)})
}

// AutoPublish 手动触发一次到期扫描，与调度器使用同一实现
func (a *API) AutoPublish(c *gin.Context) {
	result, err := a.publisher.RunDuePublishScan(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "自动发布失败")
		return
	}

	logger.Infow("manual_publish_scan", "user_id", currentUserID(c), "count", result.Published, "now", result.Now)
	c.JSON(http.StatusOK, gin.H{
		"message":   "自动发布完成",
		"published": result.Published,
		"now":       result.Now,
	})
}

// saveRequestImage 保存 multipart 中的 image 文件；未上传时返回空路径。
// 返回 false 表示已写入错误响应。
func (a *API) saveRequestImage(c *gin.Context) (string, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		return "", true
	}
	file, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", true
		}
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return "", false
	}
	imagePath, err := a.uploads.SaveImage(file)
	if err != nil {
		respondServiceError(c, err, "图片保存失败")
		return "", false
	}
	return imagePath, true
}

func (a *API) discardImage(imagePath string) {
	if imagePath == "" {
		return
	}
	if err := a.uploads.Remove(imagePath); err != nil {
		logger.Warnw("image_remove_failed", "path", imagePath, "error", err)
	}
}

// validImagePath 只接受本站上传目录下的图片，空值表示不设置
func (a *API) validImagePath(imagePath string) bool {
	imagePath = strings.TrimSpace(imagePath)
	if imagePath == "" {
		return true
	}
	prefix := a.uploads.URLPath() + "/"
	name := strings.TrimPrefix(imagePath, prefix)
	return strings.HasPrefix(imagePath, prefix) && name != "" && !strings.ContainsAny(name, "/\\")
}
