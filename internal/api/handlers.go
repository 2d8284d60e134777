// internal/api/handlers.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/errors"
	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/services"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	ReviserService  *services.ReviserService  // 修订服务
	DocumentService *services.DocumentService // 文档服务
	ExportService   *services.ExportService   // 导出服务
	LLMService      *services.LLMService      // LLM服务
	ConfigService   *services.ConfigService   // 配置服务
	ProgressService *services.ProgressService // 进度跟踪服务
	Response        *ResponseHelper           // 响应助手
}

// ReviseRequest 修订请求结构
type ReviseRequest struct {
	Feedback       string `json:"feedback"`        // 用户反馈
	TargetedUpdate bool   `json:"targeted_update"` // true=定向修订，false=全文档分析
}

// RouteRequest 路由预览请求结构
type RouteRequest struct {
	Feedback string `json:"feedback"` // 用户反馈
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIError API错误详情
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta 分页元数据
type PaginationMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse 分页响应
type PaginatedResponse struct {
	*APIResponse
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// NewHandler 创建API处理器
func NewHandler(
	reviserService *services.ReviserService,
	documentService *services.DocumentService,
	exportService *services.ExportService,
	llmService *services.LLMService,
	configService *services.ConfigService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		ReviserService:  reviserService,
		DocumentService: documentService,
		ExportService:   exportService,
		LLMService:      llmService,
		ConfigService:   configService,
		ProgressService: progressService,
		Response:        NewResponseHelper(),
	}
}

// ===============================
// 文档管理
// ===============================

// CreateDocument 创建新文档
func (h *Handler) CreateDocument(c *gin.Context) {
	doc := &models.NarrativeDocument{}
	if err := c.ShouldBindJSON(doc); err != nil {
		h.Response.BadRequest(c, "无效的文档数据", err.Error())
		return
	}

	if err := h.DocumentService.CreateDocument(doc); err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Created(c, doc, "文档创建成功")
}

// GetDocuments 列出所有文档概要
func (h *Handler) GetDocuments(c *gin.Context) {
	summaries, err := h.DocumentService.ListDocuments()
	if err != nil {
		h.Response.InternalError(c, "列出文档失败", err.Error())
		return
	}

	h.Response.Success(c, summaries)
}

// GetDocument 获取单个文档
func (h *Handler) GetDocument(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.DocumentService.LoadDocument(id)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Success(c, doc)
}

// DeleteDocument 删除文档
func (h *Handler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")

	if err := h.DocumentService.DeleteDocument(id); err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{"document_id": id}, "文档已删除")
}

// ===============================
// 修订
// ===============================

// ReviseDocument 同步执行一次修订
// 修订提交后自动保存文档并导出一对新产物
func (h *Handler) ReviseDocument(c *gin.Context) {
	id := c.Param("id")

	req := ReviseRequest{TargetedUpdate: true}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的修订请求", err.Error())
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		h.Response.BadRequest(c, "反馈内容不能为空")
		return
	}

	doc, err := h.DocumentService.LoadDocument(id)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	result, err := h.runRevision(c.Request.Context(), doc, req, nil)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Success(c, result)
}

// ReviseDocumentAsync 异步执行修订，返回可订阅进度的任务ID
func (h *Handler) ReviseDocumentAsync(c *gin.Context) {
	id := c.Param("id")

	req := ReviseRequest{TargetedUpdate: true}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的修订请求", err.Error())
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		h.Response.BadRequest(c, "反馈内容不能为空")
		return
	}

	doc, err := h.DocumentService.LoadDocument(id)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	taskID := fmt.Sprintf("revise_%s_%d", id, time.Now().UnixNano())
	tracker := h.ProgressService.CreateTracker(taskID)

	go func() {
		// 异步任务不继承请求上下文，避免客户端断开导致修订中途取消
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		result, err := h.runRevision(ctx, doc, req, tracker)
		switch {
		case err != nil:
			tracker.Fail(err.Error())
			notifyProgressDone(taskID, "failed", nil)
		case result.Phase == models.PhaseFailed:
			tracker.Fail(result.Reasoning)
			notifyProgressDone(taskID, "failed", result)
		default:
			tracker.Complete("修订已完成")
			notifyProgressDone(taskID, "completed", result)
		}
	}()

	c.JSON(http.StatusAccepted, &APIResponse{
		Success:   true,
		Data:      gin.H{"task_id": taskID, "document_id": id},
		Message:   "修订任务已启动",
		Timestamp: time.Now(),
	})
}

// runRevision 执行修订并在提交后落盘加导出
func (h *Handler) runRevision(ctx context.Context, doc *models.NarrativeDocument, req ReviseRequest, tracker *services.ProgressTracker) (*models.RevisionResult, error) {
	revReq := models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       req.Feedback,
		TargetedUpdate: req.TargetedUpdate,
	}

	updated, result, err := h.ReviserService.ReviseWithProgress(ctx, doc, revReq, tracker)
	if err != nil {
		return nil, err
	}

	// 失败的修订不落盘：文档保持修订前的状态
	if result.Phase != models.PhaseCommitted {
		return result, nil
	}

	if err := h.DocumentService.SaveDocument(updated); err != nil {
		return nil, err
	}

	pair, err := h.ExportService.ExportDocument(updated)
	if err != nil {
		return nil, err
	}
	result.ExportJSON = pair.JSON.FilePath
	result.ExportMD = pair.Markdown.FilePath

	return result, nil
}

// RouteFeedback 预览反馈会被路由到哪个组件，不执行修订
func (h *Handler) RouteFeedback(c *gin.Context) {
	req := RouteRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的路由请求", err.Error())
		return
	}
	if strings.TrimSpace(req.Feedback) == "" {
		h.Response.BadRequest(c, "反馈内容不能为空")
		return
	}

	component := services.RouteByKeywords(req.Feedback)
	h.Response.Success(c, gin.H{
		"component":      component,
		"scene_increase": services.DetectSceneIncreaseIntent(req.Feedback),
		"routing_method": "keyword",
	})
}

// ===============================
// 导出历史
// ===============================

// GetExportHistory 列出文档的全部历史产物
func (h *Handler) GetExportHistory(c *gin.Context) {
	id := c.Param("id")

	files, err := h.ExportService.ListExports(id)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Success(c, gin.H{
		"document_id": id,
		"exports":     files,
		"count":       len(files),
	})
}

// DownloadExport 下载单个历史产物
func (h *Handler) DownloadExport(c *gin.Context) {
	id := c.Param("id")
	filename := filepath.Base(c.Param("filename"))

	content, err := h.ExportService.LoadExport(id, filename)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	switch {
	case strings.HasSuffix(filename, ".json"):
		contentType = "application/json; charset=utf-8"
	case strings.HasSuffix(filename, ".md"):
		contentType = "text/markdown; charset=utf-8"
	}

	h.Response.DownloadResponse(c, string(content), filename, contentType)
}

// GetLatestExport 从最新的JSON产物恢复文档
func (h *Handler) GetLatestExport(c *gin.Context) {
	id := c.Param("id")

	doc, err := h.ExportService.LoadLatestDocument(id)
	if err != nil {
		h.respondAppError(c, err)
		return
	}

	h.Response.Success(c, doc)
}

// ===============================
// LLM配置
// ===============================

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()

	h.Response.Success(c, gin.H{
		"ready":    ready,
		"state":    state,
		"provider": h.ConfigService.GetLLMProvider(),
	})
}

// UpdateLLMConfig 更新LLM提供商配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider"`
		Config   map[string]string `json:"config"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的配置数据", err.Error())
		return
	}
	if req.Provider == "" {
		h.Response.BadRequest(c, "provider不能为空")
		return
	}
	if req.Config == nil {
		req.Config = make(map[string]string)
	}

	if err := h.ConfigService.UpdateLLMConfig(req.Provider, req.Config, c.ClientIP()); err != nil {
		h.Response.InternalError(c, "更新LLM配置失败", err.Error())
		return
	}

	if err := h.LLMService.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.InternalError(c, "切换LLM提供商失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{"provider": req.Provider}, "LLM配置已更新")
}

// ===============================
// 健康检查
// ===============================

// GetHealth 健康检查
func (h *Handler) GetHealth(c *gin.Context) {
	ready, state := h.LLMService.GetProviderStatus()

	h.Response.Success(c, gin.H{
		"status":    "ok",
		"llm_ready": ready,
		"llm_state": state,
	})
}

// respondAppError 把AppError映射为对应的HTTP响应
func (h *Handler) respondAppError(c *gin.Context, err error) {
	switch {
	case errors.IsValidationError(err) || errors.IsInvalidPayload(err):
		h.Response.BadRequest(c, err.Error())
	case errors.IsNotFoundError(err) || errors.IsEntityNotFound(err):
		h.Response.Error(c, http.StatusNotFound, ErrorDocumentNotFound, err.Error())
	case errors.IsConflictError(err):
		h.Response.Conflict(c, err.Error())
	default:
		h.Response.InternalError(c, err.Error())
	}
}
