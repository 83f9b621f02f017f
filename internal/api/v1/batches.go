package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ListBatches 批次列表，按创建时间倒序
// GET /api/batches?limit=N
func (h *Handler) ListBatches(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	batches, err := h.store.ListBatches(limit)
	if err != nil {
		h.log.Error("查询批次列表失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询批次列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// GetBatch 批次详情：基本信息、sheet 快照和完整错误清单
// GET /api/batches/:id
func (h *Handler) GetBatch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的批次 id"})
		return
	}

	batch, err := h.store.GetBatch(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "批次不存在"})
		return
	}

	errs, err := h.store.ListErrors(id)
	if err != nil {
		h.log.Error("查询错误清单失败", zap.Int64("batch", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询错误清单失败"})
		return
	}

	resp := gin.H{"batch": batch, "errors": errs}

	// raw 层快照可能不存在（批次在保存前就失败了）
	if raw, err := h.store.GetRawFileByBatch(id); err == nil {
		if sheets, err := h.store.ListRawSheets(raw.ID); err == nil {
			resp["sheets"] = sheets
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ReplayBatch 从已存储的原始文件重放批次，返回新的异步任务 id
// POST /api/batches/:id/replay
func (h *Handler) ReplayBatch(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的批次 id"})
		return
	}

	events, err := h.coordinator.Replay(id)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	batch, _ := h.store.GetBatch(id)
	filename := ""
	if batch != nil {
		filename = batch.Filename
	}
	task := h.tasks.start(filename, events)
	c.JSON(http.StatusAccepted, gin.H{
		"taskId": task.ID,
		"status": task.Status,
	})
}
