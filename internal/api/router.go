// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/ArcueHQ/SagaReviserMCP/internal/config"
	"github.com/ArcueHQ/SagaReviserMCP/internal/di"
	"github.com/ArcueHQ/SagaReviserMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	reviserService, ok := container.Get("reviser").(*services.ReviserService)
	if !ok {
		return nil, fmt.Errorf("修订服务未正确初始化")
	}

	documentService, ok := container.Get("document").(*services.DocumentService)
	if !ok {
		return nil, fmt.Errorf("文档服务未正确初始化")
	}

	exportService, ok := container.Get("export").(*services.ExportService)
	if !ok {
		return nil, fmt.Errorf("导出服务未正确初始化")
	}

	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		return nil, fmt.Errorf("LLM服务未正确初始化")
	}

	configService, ok := container.Get("config").(*services.ConfigService)
	if !ok {
		return nil, fmt.Errorf("配置服务未正确初始化")
	}

	progressService, ok := container.Get("progress").(*services.ProgressService)
	if !ok {
		return nil, fmt.Errorf("进度服务未正确初始化")
	}

	// 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(
		reviserService,
		documentService,
		exportService,
		llmService,
		configService,
		progressService,
	)

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// WebSocket 支持
	r.GET("/ws/progress/:task_id", handler.ProgressWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// 健康检查
		api.GET("/health", handler.GetHealth)

		// ===============================
		// 文档相关路由
		// ===============================
		documentsGroup := api.Group("/documents")
		{
			documentsGroup.GET("", handler.GetDocuments)
			documentsGroup.POST("", handler.CreateDocument)
			documentsGroup.GET("/:id", handler.GetDocument)
			documentsGroup.DELETE("/:id", handler.DeleteDocument)

			// 修订：定向修订加全文档分析共用同一入口
			documentsGroup.POST("/:id/revise", RevisionRateLimit(), handler.ReviseDocument)
			documentsGroup.POST("/:id/revise/async", RevisionRateLimit(), handler.ReviseDocumentAsync)

			// 导出历史相关路由
			exportGroup := documentsGroup.Group("/:id/exports")
			{
				exportGroup.GET("", handler.GetExportHistory)
				exportGroup.GET("/latest", handler.GetLatestExport)
				exportGroup.GET("/:filename", handler.DownloadExport)
			}
		}

		// ===============================
		// 路由预览
		// ===============================
		api.POST("/route", handler.RouteFeedback)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// WebSocket 管理路由
		api.GET("/ws/status", handler.GetWebSocketStatus)
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
