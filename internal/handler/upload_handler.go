package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smms/internal/logger"
)

// UploadImage 处理图片上传请求
func (a *API) UploadImage(c *gin.Context) {
	// 获取上传的文件
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传的图片", "success": 0})
		return
	}

	// 按文件内容校验格式并保存
	fileURL, err := a.uploads.SaveImage(file)
	if err != nil {
		respondServiceError(c, err, "保存文件失败")
		return
	}

	logger.Infow("image_uploaded", "user_id", currentUserID(c), "path", fileURL, "size", file.Size)
	c.JSON(http.StatusOK, gin.H{
		"success": 1,
		"message": "上传成功",
		"data": gin.H{
			"filePath": fileURL,
			"url":      fileURL,
		},
	})
}
