package v1

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xpchen/hogprice-insight-sub000/internal/exporter"
	"github.com/xpchen/hogprice-insight-sub000/internal/importer"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

// Handler 导入 API 处理器
type Handler struct {
	store       *store.Store
	coordinator *importer.Coordinator
	exporter    *exporter.Exporter
	uploadDir   string
	log         *zap.Logger
	tasks       *taskRegistry
}

// NewHandler 创建 API 处理器
func NewHandler(st *store.Store, coordinator *importer.Coordinator, uploadDir string, log *zap.Logger) *Handler {
	return &Handler{
		store:       st,
		coordinator: coordinator,
		exporter:    exporter.NewExporter(st),
		uploadDir:   uploadDir,
		log:         log,
		tasks:       newTaskRegistry(),
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 数据导入：SSE 流式 / 异步任务 + 轮询
	router.POST("/import", h.ImportStream)
	router.POST("/upload", h.Upload)
	router.GET("/tasks/:id", h.GetTask)

	// 批次查询与重放
	router.GET("/batches", h.ListBatches)
	router.GET("/batches/:id", h.GetBatch)
	router.POST("/batches/:id/replay", h.ReplayBatch)

	// 观测值查询与 Excel 导出
	router.GET("/observations", h.ListObservations)
	router.GET("/export", h.ExportObservations)
}
