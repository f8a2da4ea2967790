package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/logger"
)

// ListBackups 列出备份文件，最新的在前
func (a *API) ListBackups(c *gin.Context) {
	backups, err := a.backups.List()
	if err != nil {
		respondServiceError(c, err, "获取备份列表失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups, "total": len(backups)})
}

// CreateBackup 立即导出数据库
func (a *API) CreateBackup(c *gin.Context) {
	info, err := a.backups.Create(c.Request.Context())
	if err != nil {
		respondServiceError(c, err, "创建备份失败")
		return
	}

	logger.Infow("backup_created", "actor_id", currentUserID(c), "name", info.Name, "size", info.Size)
	c.JSON(http.StatusCreated, gin.H{"message": "备份已创建", "backup": info})
}

// DownloadBackup 以附件形式下载备份
func (a *API) DownloadBackup(c *gin.Context) {
	name := c.Param("name")
	path, err := a.backups.Path(name)
	if err != nil {
		respondServiceError(c, err, "下载备份失败")
		return
	}
	c.FileAttachment(path, name)
}

// DeleteBackup 删除备份文件
func (a *API) DeleteBackup(c *gin.Context) {
	name := c.Param("name")
	if err := a.backups.Delete(name); err != nil {
		respondServiceError(c, err, "删除备份失败")
		return
	}

	logger.Infow("backup_deleted", "actor_id", currentUserID(c), "name", name)
	c.JSON(http.StatusOK, gin.H{"message": "备份已删除"})
}
