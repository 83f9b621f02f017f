package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

func observationFilter(c *gin.Context) store.ObservationFilter {
	batchID, _ := strconv.ParseInt(c.Query("batchId"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	return store.ObservationFilter{
		MetricKey: c.Query("metric"),
		GeoCode:   c.Query("geo"),
		BatchID:   batchID,
		From:      c.Query("from"),
		To:        c.Query("to"),
		Limit:     limit,
	}
}

// ListObservations 观测值查询
// GET /api/observations?metric=&geo=&batchId=&from=&to=&limit=
func (h *Handler) ListObservations(c *gin.Context) {
	obs, err := h.store.QueryObservations(observationFilter(c))
	if err != nil {
		h.log.Error("查询观测值失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询观测值失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"observations": obs, "count": len(obs)})
}

// ExportObservations 观测值导出为 xlsx 下载，过滤参数与查询接口一致
// GET /api/export?metric=&geo=&batchId=&from=&to=&limit=
func (h *Handler) ExportObservations(c *gin.Context) {
	filter := observationFilter(c)
	// 导出不做默认截断，limit 仅在显式传入时生效
	if c.Query("limit") == "" {
		filter.Limit = 0
	}

	f, err := h.exporter.Export(filter)
	if err != nil {
		h.log.Error("导出观测值失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "导出失败"})
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("observations_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(c.Writer); err != nil {
		h.log.Error("写出导出文件失败", zap.Error(err))
	}
}
