package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStatus 系统状态：观测值总量和最近一次批次
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	total, err := h.store.CountObservations()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询观测值总量失败"})
		return
	}

	resp := gin.H{"observations": total}
	if batches, err := h.store.ListBatches(1); err == nil && len(batches) > 0 {
		resp["lastBatch"] = batches[0]
	}
	c.JSON(http.StatusOK, resp)
}
