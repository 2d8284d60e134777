// internal/app/app.go
package app

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/ArcueHQ/SagaReviserMCP/internal/config"
	"github.com/ArcueHQ/SagaReviserMCP/internal/di"
	"github.com/ArcueHQ/SagaReviserMCP/internal/services"
	"github.com/ArcueHQ/SagaReviserMCP/internal/storage"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// InitServices 按依赖顺序初始化所有服务并注册到容器
// 调用前必须先完成 config.InitConfig
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 日志先于一切服务
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "saga_reviser.log")); err != nil {
		log.Printf("警告: 初始化日志文件失败，日志只输出到控制台: %v", err)
	}

	// 1. 存储层
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 2. 配置服务
	configService := services.NewConfigService()
	container.Register("config", configService)

	// 3. LLM服务：初始化失败时降级为空服务，修订功能等待配置接口补全密钥
	llmService, err := services.NewLLMService()
	if err != nil {
		log.Printf("⚠️ LLM服务未就绪: %v", err)
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	// 4. 提案器：同时充当分类器和全文档分析器
	proposer := services.NewLLMProposer(llmService)
	container.Register("proposer", proposer)

	// 5. 修订流水线的各环节
	routerService := services.NewRouterService(proposer)
	container.Register("router", routerService)

	patchService := services.NewPatchService()
	container.Register("patch", patchService)

	sceneService := services.NewSceneService()
	container.Register("scene", sceneService)

	propagationService := services.NewPropagationService()
	container.Register("propagation", propagationService)

	reviserService := services.NewReviserService(
		routerService,
		patchService,
		sceneService,
		propagationService,
		proposer,
		proposer,
	)
	container.Register("reviser", reviserService)

	// 6. 持久化与导出
	documentService := services.NewDocumentService(fileStorage)
	container.Register("document", documentService)

	exportService := services.NewExportService(fileStorage)
	container.Register("export", exportService)

	// 7. 进度跟踪
	progressService := services.NewProgressService()
	container.Register("progress", progressService)

	return nil
}
