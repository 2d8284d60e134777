// internal/services/reviser_service.go
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// ReviserService 修订装配器，驱动一次完整修订的状态机：
// idle → routing → proposing → patching → [propagating] → assembling → committed|failed
//
// 每次修订先对文档做完整快照；补丁只作用于路由命中的那一个组件，
// 装配阶段从快照恢复所有非目标字段，重命名传播在装配之后叠加。
// 任何一步失败都恢复快照并报告failed，从不留下半成品状态。
//
// 服务本身不做并发控制，同一文档实例的修订必须由调用方串行化。
type ReviserService struct {
	router     *RouterService
	patcher    *PatchService
	scenes     *SceneService
	propagator *PropagationService
	proposer   Proposer
	analyzer   DocumentAnalyzer
	logger     *utils.Logger
	metrics    *utils.RevisionMetrics
}

// NewReviserService 创建修订服务
// analyzer可以为nil，此时非定向修订请求退化为定向修订
func NewReviserService(
	router *RouterService,
	patcher *PatchService,
	scenes *SceneService,
	propagator *PropagationService,
	proposer Proposer,
	analyzer DocumentAnalyzer,
) *ReviserService {
	return &ReviserService{
		router:     router,
		patcher:    patcher,
		scenes:     scenes,
		propagator: propagator,
		proposer:   proposer,
		analyzer:   analyzer,
		logger:     utils.GetLogger(),
		metrics:    utils.NewRevisionMetrics(),
	}
}

// Revise 对文档应用一次修订请求，返回修订后的文档和结果
// 输入文档不被修改；失败时返回的文档与输入语义等价
func (s *ReviserService) Revise(ctx context.Context, doc *models.NarrativeDocument, req models.RevisionRequest) (*models.NarrativeDocument, *models.RevisionResult, error) {
	return s.ReviseWithProgress(ctx, doc, req, nil)
}

// ReviseWithProgress 同Revise，额外向进度跟踪器上报阶段变化
func (s *ReviserService) ReviseWithProgress(ctx context.Context, doc *models.NarrativeDocument, req models.RevisionRequest, tracker *ProgressTracker) (*models.NarrativeDocument, *models.RevisionResult, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("文档为空，无法修订")
	}
	if req.Feedback == "" {
		return nil, nil, fmt.Errorf("反馈为空，无法修订")
	}

	if req.TargetedUpdate || s.analyzer == nil {
		return s.reviseTargeted(ctx, doc, req, tracker)
	}
	return s.reviseWholeDocument(ctx, doc, req, tracker)
}

// reviseTargeted 定向修订：路由到唯一组件并应用一次变更
func (s *ReviserService) reviseTargeted(ctx context.Context, doc *models.NarrativeDocument, req models.RevisionRequest, tracker *ProgressTracker) (*models.NarrativeDocument, *models.RevisionResult, error) {
	start := time.Now()

	reportProgress(tracker, 10, "正在路由反馈到目标组件")
	classification := s.router.Route(ctx, req.Feedback, doc.Summary())
	component := classification.PrimaryComponent

	s.logger.Info("反馈已路由", map[string]interface{}{
		"document_id": doc.ID,
		"component":   component,
	})

	reportProgress(tracker, 30, fmt.Sprintf("正在修订组件 %s", component))
	updated, componentResult := s.reviseComponent(ctx, doc, component, req.Feedback)

	reportProgress(tracker, 90, "正在装配修订结果")
	result := &models.RevisionResult{
		DocumentID: doc.ID,
		Components: []models.ComponentResult{componentResult},
		Dependents: classification.DependentComponents,
		Reasoning:  classification.Reasoning,
	}

	if componentResult.Outcome == models.OutcomeFailed {
		result.Phase = models.PhaseFailed
	} else {
		result.Phase = models.PhaseCommitted
	}

	s.metrics.RecordRevision(string(component), string(componentResult.Outcome), time.Since(start))

	return updated, result, nil
}

// reviseWholeDocument 非定向修订：全文档分析后按优先级逐个组件修订
// 单个组件失败不中断整体，其余组件照常处理
func (s *ReviserService) reviseWholeDocument(ctx context.Context, doc *models.NarrativeDocument, req models.RevisionRequest, tracker *ProgressTracker) (*models.NarrativeDocument, *models.RevisionResult, error) {
	start := time.Now()

	reportProgress(tracker, 10, "正在分析全文档")
	analysis, err := s.analyzer.AnalyzeDocument(ctx, req.Feedback, doc)
	if err != nil {
		s.logger.Warn("全文档分析失败，退化为定向修订", map[string]interface{}{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
		return s.reviseTargeted(ctx, doc, req, tracker)
	}

	toUpdate := analysis.ComponentsToUpdate()
	sort.SliceStable(toUpdate, func(i, j int) bool {
		return toUpdate[i].Priority < toUpdate[j].Priority
	})

	result := &models.RevisionResult{
		DocumentID: doc.ID,
		Reasoning:  analysis.OverallAssessment,
	}

	current := doc
	for i, cf := range toUpdate {
		if !models.IsValidComponent(cf.ComponentName) {
			s.logger.Warn("分析返回了未知组件，跳过", map[string]interface{}{
				"component": cf.ComponentName,
			})
			continue
		}

		feedback := cf.Feedback
		if feedback == "" {
			feedback = req.Feedback
		}

		progress := 20 + 70*i/max(len(toUpdate), 1)
		reportProgress(tracker, progress, fmt.Sprintf("正在修订组件 %s", cf.ComponentName))

		updated, componentResult := s.reviseComponent(ctx, current, cf.ComponentName, feedback)
		result.Components = append(result.Components, componentResult)

		if componentResult.Outcome != models.OutcomeFailed {
			current = updated
		}

		s.metrics.RecordRevision(string(cf.ComponentName), string(componentResult.Outcome), time.Since(start))
	}

	result.Phase = models.PhaseCommitted
	if len(result.Components) > 0 {
		allFailed := true
		for _, cr := range result.Components {
			if cr.Outcome != models.OutcomeFailed {
				allFailed = false
				break
			}
		}
		if allFailed {
			result.Phase = models.PhaseFailed
		}
	}

	return current, result, nil
}

// reviseComponent 对单个组件执行 提案 → 补丁 → 装配 → 传播 流水线
// 返回修订后的文档；失败时返回的文档等价于快照，不泄漏中间状态
func (s *ReviserService) reviseComponent(ctx context.Context, doc *models.NarrativeDocument, component models.ComponentName, feedback string) (updatedDoc *models.NarrativeDocument, result models.ComponentResult) {
	snapshot := doc.Clone()
	result = models.ComponentResult{Component: component}

	// 补丁流水线中的任何意外崩溃都降级为该组件failed并恢复快照
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("组件修订过程发生异常，已恢复快照", map[string]interface{}{
				"component": component,
				"panic":     fmt.Sprintf("%v", r),
			})
			s.metrics.RecordError("panic", string(component))
			snapshot.Pending = nil
			snapshot.ScenePolicy.AllowIncrease = false
			updatedDoc = snapshot
			result.Outcome = models.OutcomeFailed
			result.Message = fmt.Sprintf("修订过程异常: %v", r)
		}
	}()

	// 瞬态反馈字段：补丁步骤前创建，结束后删除
	working := doc.Clone()
	working.Pending = &models.PendingFeedback{Component: component, Feedback: feedback}
	working.ScenePolicy.OriginalCount = len(working.Scenes)
	if component == models.ComponentScenes {
		// 场景数量授权门：扫描反馈中的触发短语，结果仅作为提案指导
		working.ScenePolicy.AllowIncrease = DetectSceneIncreaseIntent(feedback)
	}

	summary := working.Summary()
	var rename *models.RenameEvent
	var renameKind models.ComponentName

	switch component {
	case models.ComponentCharacters:
		change, err := s.proposer.ProposeCharacterChange(ctx, feedback, working.Characters, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		updated, patch := s.patcher.PatchCharacters(working.Characters, change)
		working.Characters = updated
		applyPatchResult(&result, patch)
		if patch.Rename != nil {
			rename = patch.Rename
			renameKind = models.ComponentCharacters
		}

	case models.ComponentLocations:
		change, err := s.proposer.ProposeLocationChange(ctx, feedback, working.Locations, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		updated, patch := s.patcher.PatchLocations(working.Locations, change)
		working.Locations = updated
		applyPatchResult(&result, patch)
		if patch.Rename != nil {
			rename = patch.Rename
			renameKind = models.ComponentLocations
		}

	case models.ComponentDialogue:
		change, err := s.proposer.ProposeDialogueChange(ctx, feedback, working.DialogueLines, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		updated, patch := s.patcher.PatchDialogueLines(working.DialogueLines, change)
		working.DialogueLines = updated
		applyPatchResult(&result, patch)

	case models.ComponentScenes:
		change, err := s.proposer.ProposeSceneChange(ctx, feedback, working.Scenes, working.ScenePolicy, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		updated, patch := s.scenes.PatchScenes(working.Scenes, change)
		working.Scenes = updated
		applyPatchResult(&result, patch)

	case models.ComponentDraft:
		draft, err := s.proposer.ProposeDraft(ctx, feedback, working.Draft, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		working.Draft = draft
		result.Outcome = models.OutcomeApplied
		result.Message = "草稿已重写"

	case models.ComponentVisualLookbook:
		lookbook, err := s.proposer.ProposeVisualLookbook(ctx, feedback, working.VisualLookbook, summary)
		if err != nil {
			return s.failComponent(snapshot, &result, component, err)
		}
		working.VisualLookbook = lookbook
		result.Outcome = models.OutcomeApplied
		result.Message = "视觉手册已更新"

	default:
		result.Outcome = models.OutcomeFailed
		result.Message = fmt.Sprintf("未知组件 %q", component)
		return snapshot, result
	}

	// 装配：从快照恢复所有非目标顶层字段，再写入目标组件
	// 标题/类型/基调始终来自快照
	assembled := snapshot.Clone()
	switch component {
	case models.ComponentCharacters:
		assembled.Characters = working.Characters
	case models.ComponentLocations:
		assembled.Locations = working.Locations
	case models.ComponentDialogue:
		assembled.DialogueLines = working.DialogueLines
	case models.ComponentScenes:
		assembled.Scenes = working.Scenes
	case models.ComponentDraft:
		assembled.Draft = working.Draft
	case models.ComponentVisualLookbook:
		assembled.VisualLookbook = working.VisualLookbook
	}

	// 重命名传播在装配之后叠加，传播失败不回滚已成功的实体补丁
	if rename != nil {
		var report models.PropagationReport
		switch renameKind {
		case models.ComponentCharacters:
			assembled, report = s.propagator.PropagateCharacterRename(assembled, *rename)
		case models.ComponentLocations:
			assembled, report = s.propagator.PropagateLocationRename(assembled, *rename)
		}
		result.Rename = rename
		result.Propagation = &report
	}

	// 清除瞬态状态：反馈字段与场景授权标志都不进入提交后的文档
	assembled.Pending = nil
	assembled.ScenePolicy.AllowIncrease = false

	return assembled, result
}

// failComponent 记录失败并恢复快照
func (s *ReviserService) failComponent(snapshot *models.NarrativeDocument, result *models.ComponentResult, component models.ComponentName, err error) (*models.NarrativeDocument, models.ComponentResult) {
	s.logger.Error("组件修订失败，保留原实体", map[string]interface{}{
		"component": component,
		"error":     err.Error(),
	})
	s.metrics.RecordError("proposer_failure", string(component))

	snapshot.Pending = nil
	snapshot.ScenePolicy.AllowIncrease = false
	result.Outcome = models.OutcomeFailed
	result.Message = err.Error()
	return snapshot, *result
}

// applyPatchResult 把补丁输出搬运到组件结果
func applyPatchResult(result *models.ComponentResult, patch PatchResult) {
	result.Outcome = patch.Outcome
	result.Message = patch.Message
}

// reportProgress 向可选的进度跟踪器上报
func reportProgress(tracker *ProgressTracker, progress int, message string) {
	if tracker != nil {
		tracker.UpdateProgress(progress, message)
	}
}
