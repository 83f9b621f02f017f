package v1

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/importer"
)

// saveUpload 把上传文件落到 uploads 目录，文件名加时间戳避免覆盖。
// 上传文件会被保留作为 raw 层与重放的依据，不走临时目录。
func (h *Handler) saveUpload(c *gin.Context) (path, filename string, ok bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return "", "", false
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未找到上传文件"})
		return "", "", false
	}
	uploaded := files[0]
	filename = filepath.Base(uploaded.Filename)
	if !importer.IsWorkbook(filename) && !importer.IsArchive(filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "仅支持 .xlsx/.xls/.zip 文件"})
		return "", "", false
	}

	path = filepath.Join(h.uploadDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filename))
	if err := c.SaveUploadedFile(uploaded, path); err != nil {
		h.log.Error("保存上传文件失败", zap.String("file", filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存文件失败"})
		return "", "", false
	}
	return path, filename, true
}

func (h *Handler) startImport(path, filename string, c *gin.Context) <-chan importer.ProgressEvent {
	opts := importer.ImportOptions{
		FilePath:    path,
		Filename:    filename,
		DatasetType: c.PostForm("datasetType"),
		SourceCode:  c.PostForm("sourceCode"),
	}
	if importer.IsArchive(filename) {
		return h.coordinator.ImportArchive(path, opts)
	}
	return h.coordinator.Import(opts)
}

// ImportStream 导入 Excel 数据（SSE 流式响应）
// POST /api/import
func (h *Handler) ImportStream(c *gin.Context) {
	path, filename, ok := h.saveUpload(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	for event := range h.startImport(path, filename, c) {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// Upload 异步导入，立即返回任务 id，进度走 GET /api/tasks/:id
// POST /api/upload
func (h *Handler) Upload(c *gin.Context) {
	path, filename, ok := h.saveUpload(c)
	if !ok {
		return
	}
	task := h.tasks.start(filename, h.startImport(path, filename, c))
	c.JSON(http.StatusAccepted, gin.H{
		"taskId": task.ID,
		"file":   filename,
		"status": task.Status,
	})
}

// GetTask 轮询任务进度。since 参数返回该序号之后的事件增量。
// GET /api/tasks/:id?since=N
func (h *Handler) GetTask(c *gin.Context) {
	since := 0
	if v := c.Query("since"); v != "" {
		fmt.Sscanf(v, "%d", &since)
	}
	task, events, next, ok := h.tasks.get(c.Param("id"), since)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task":   task,
		"events": events,
		"next":   next,
	})
}
