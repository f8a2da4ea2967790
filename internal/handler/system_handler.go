package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/logger"
)

// HealthCheck 提供负载均衡与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	uptime := a.clock.Now().Sub(a.startedAt).Truncate(time.Second)

	sqlDB, err := a.db.DB()
	if err != nil {
		logger.Errorw("health_db_handle_unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "database handle unavailable",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		logger.Errorw("health_db_unreachable", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "error",
			"message":  "database unreachable",
			"database": "down",
			"uptime":   uptime.String(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"database":       "up",
		"uptime":         uptime.String(),
		"uptime_seconds": int64(uptime.Seconds()),
		"config":         a.configSummary,
	})
}
