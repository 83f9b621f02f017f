package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	v1 "github.com/xpchen/hogprice-insight-sub000/internal/api/v1"
	"github.com/xpchen/hogprice-insight-sub000/internal/config"
	"github.com/xpchen/hogprice-insight-sub000/internal/importer"
	"github.com/xpchen/hogprice-insight-sub000/internal/profile"
	"github.com/xpchen/hogprice-insight-sub000/internal/store"
)

// Server HTTP 服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	log    *zap.Logger
}

// NewServer 创建服务器：初始化存储、profile 注册表、导入协调器和路由
func NewServer(cfg *config.AppConfig, log *zap.Logger) (*Server, error) {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}

	st, err := store.New(config.DBPath(cfg, dataDir),
		store.WithUpsertChunkSize(cfg.Ingest.UpsertChunkSize))
	if err != nil {
		return nil, fmt.Errorf("初始化数据库失败: %w", err)
	}

	registry, err := profile.LoadDir(cfg.Ingest.ProfileDir)
	if err != nil {
		// profile 目录缺失时按纯 raw 模式运行，所有上传只进快照层
		log.Warn("加载 profile 目录失败，进入 raw-only 模式",
			zap.String("dir", cfg.Ingest.ProfileDir), zap.Error(err))
		registry = nil
	}

	uploadDir := config.UploadDir(dataDir)
	coordinator := importer.NewCoordinator(st, registry, log,
		importer.WithRawCellLimit(cfg.Ingest.RawCellLimit),
		importer.WithArchiveDir(uploadDir))

	handler := v1.NewHandler(st, coordinator, uploadDir, log)

	s := &Server{
		router: gin.Default(),
		store:  st,
		log:    log,
	}
	s.setupRoutes(handler)
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(handler *v1.Handler) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		handler.RegisterRoutes(api)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Close 释放底层资源
func (s *Server) Close() error {
	return s.store.Close()
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
