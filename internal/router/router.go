package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/smms/internal/handler"
)

// Options 路由与会话配置
type Options struct {
	SessionSecret  string
	CookieName     string
	SessionTimeout time.Duration
	SecureCookie   bool
	ForceHTTPS     bool
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(handler.RequestID(), handler.Recovery(), handler.AccessLog(), handler.SecurityHeaders(opts.ForceHTTPS))
	if opts.ForceHTTPS {
		r.Use(handler.HTTPSRedirect())
	}

	// 配置会话中间件，cookie 有效期与空闲超时一致
	cookieName := opts.CookieName
	if cookieName == "" {
		cookieName = "smms_session"
	}
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionTimeout / time.Second),
		HttpOnly: true,
		Secure:   opts.SecureCookie || opts.ForceHTTPS,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(cookieName, store))

	// 静态文件服务
	uploads := api.Uploads()
	r.Static(uploads.URLPath(), uploads.Dir())

	r.GET("/health", api.HealthCheck)

	auth := r.Group("/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
	}

	// 需要登录的 API
	authed := r.Group("/api")
	authed.Use(api.AuthRequired())
	{
		authed.GET("/dashboard", api.Dashboard)
		authed.GET("/analytics", api.Analytics)

		authed.GET("/posts", api.ListPosts)
		authed.GET("/posts/drafts", api.ListDrafts)
		authed.GET("/posts/scheduled", api.ListScheduled)
		authed.GET("/posts/:id", api.GetPost)
		authed.POST("/posts", api.CreatePost)
		authed.PUT("/posts/:id", api.UpdatePost)
		authed.DELETE("/posts/:id", api.DeletePost)
		authed.POST("/posts/:id/schedule", api.SchedulePost)
		authed.POST("/posts/:id/publish", api.PublishPost)
		authed.POST("/posts/auto-publish", api.AutoPublish)

		authed.POST("/uploads", api.UploadImage)
	}

	// 后台管理路由
	admin := r.Group("/admin/api")
	admin.Use(api.AuthRequired(), api.AdminRequired())
	{
		admin.GET("/overview", api.AdminOverview)
		admin.POST("/users/:id/activate", api.ActivateUser)
		admin.POST("/users/:id/deactivate", api.DeactivateUser)
		admin.POST("/users/:id/promote", api.PromoteUser)
		admin.POST("/users/:id/demote", api.DemoteUser)
		admin.POST("/publish-scheduled", api.PublishScheduled)
		admin.GET("/debug/scheduler", api.DebugScheduler)

		admin.GET("/backups", api.ListBackups)
		admin.POST("/backups", api.CreateBackup)
		admin.GET("/backups/:name", api.DownloadBackup)
		admin.DELETE("/backups/:name", api.DeleteBackup)
	}

	return r
}
