// internal/services/router_service.go
package services

import (
	"context"
	"strings"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// Classifier 可选的外部分类器接口
// 不可用或失败时，路由退化为确定性的关键词匹配
type Classifier interface {
	Classify(ctx context.Context, feedback string, summary models.DocumentSummary) (*models.Classification, error)
}

// componentKeywords 一个组件及其触发关键词集合
type componentKeywords struct {
	Component models.ComponentName
	Keywords  []string
}

// 按固定优先级排列的关键词路由表，顺序即裁决顺序
// 第一个关键词与反馈相交的组件胜出，全部未命中则落到draft
var routingTable = []componentKeywords{
	{models.ComponentCharacters, []string{"character", "protagonist", "person", "people", "cast"}},
	{models.ComponentDraft, []string{"draft", "story", "narrative", "plot", "storyline"}},
	{models.ComponentDialogue, []string{"dialogue", "dialog", "conversation", "lines", "speech"}},
	{models.ComponentLocations, []string{"location", "place", "setting", "scene location", "where"}},
	{models.ComponentVisualLookbook, []string{"visual", "style", "look", "aesthetic", "color", "camera"}},
	{models.ComponentScenes, []string{"scene", "shot", "sequence", "scene breakdown"}},
}

// 场景数量授权门的触发短语，命中任意一个即允许增加场景数
var sceneIncreasePhrases = []string{
	"add scene",
	"add more scene",
	"need more scene",
	"create more scene",
	"insert scene",
	"additional scene",
	"more scenes",
	"expand scenes",
	"increase scene count",
	"add another scene",
	"add new scene",
}

// RouterService 将自由文本反馈路由到唯一的目标组件
type RouterService struct {
	classifier Classifier
	logger     *utils.Logger
}

// NewRouterService 创建路由服务，classifier可以为nil
func NewRouterService(classifier Classifier) *RouterService {
	return &RouterService{
		classifier: classifier,
		logger:     utils.GetLogger(),
	}
}

// Route 确定反馈的目标组件
// 外部分类器可用时优先使用其结果，依赖组件仅记录日志从不自动应用
// 分类器失败时退回关键词匹配，保证总能返回一个组件
func (s *RouterService) Route(ctx context.Context, feedback string, summary models.DocumentSummary) *models.Classification {
	if s.classifier != nil {
		result, err := s.classifier.Classify(ctx, feedback, summary)
		if err == nil && result != nil && models.IsValidComponent(result.PrimaryComponent) {
			if len(result.DependentComponents) > 0 {
				s.logger.Info("分类器标记了候选依赖组件（仅记录，不自动应用）", map[string]interface{}{
					"primary":    result.PrimaryComponent,
					"dependents": result.DependentComponents,
				})
			}
			return result
		}
		if err != nil {
			s.logger.Warn("外部分类器失败，退回关键词路由", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	component := RouteByKeywords(feedback)
	return &models.Classification{
		PrimaryComponent: component,
		Reasoning:        "keyword routing",
	}
}

// RouteByKeywords 纯关键词路由，无副作用，不做任何外部调用
// 按路由表固定顺序裁决，全部未命中时默认draft
func RouteByKeywords(feedback string) models.ComponentName {
	lowered := strings.ToLower(feedback)

	for _, entry := range routingTable {
		for _, keyword := range entry.Keywords {
			if strings.Contains(lowered, keyword) {
				return entry.Component
			}
		}
	}

	return models.ComponentDraft
}

// DetectSceneIncreaseIntent 扫描反馈中的场景增加触发短语
// 结果作为指导信号传给提案器，不是对返回提案的硬性约束
func DetectSceneIncreaseIntent(feedback string) bool {
	lowered := strings.ToLower(feedback)

	for _, phrase := range sceneIncreasePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}

	return false
}
