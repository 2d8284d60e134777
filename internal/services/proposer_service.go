// internal/services/proposer_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ArcueHQ/SagaReviserMCP/internal/errors"
	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// Proposer 外部内容提案器接口，每种组件一个方法
// 实现者把反馈加当前实体转成一个结构化变更提案
// 测试中可以用确定性桩实现整体替换
type Proposer interface {
	ProposeCharacterChange(ctx context.Context, feedback string, characters []models.Character, summary models.DocumentSummary) (*models.CharacterChange, error)
	ProposeLocationChange(ctx context.Context, feedback string, locations []models.Location, summary models.DocumentSummary) (*models.LocationChange, error)
	ProposeDialogueChange(ctx context.Context, feedback string, lines []models.DialogueLine, summary models.DocumentSummary) (*models.DialogueChange, error)
	ProposeSceneChange(ctx context.Context, feedback string, scenes []models.Scene, policy models.ScenePolicy, summary models.DocumentSummary) (*models.SceneChange, error)
	ProposeDraft(ctx context.Context, feedback string, currentDraft string, summary models.DocumentSummary) (string, error)
	ProposeVisualLookbook(ctx context.Context, feedback string, current map[string]interface{}, summary models.DocumentSummary) (map[string]interface{}, error)
}

// DocumentAnalyzer 全文档分析接口，非定向修订模式使用
type DocumentAnalyzer interface {
	AnalyzeDocument(ctx context.Context, feedback string, doc *models.NarrativeDocument) (*models.DocumentAnalysis, error)
}

// LLMProposer 基于LLM结构化输出的提案器实现
// 同时实现Classifier和DocumentAnalyzer
type LLMProposer struct {
	llmService *LLMService
	logger     *utils.Logger
}

// NewLLMProposer 创建LLM提案器
func NewLLMProposer(llmService *LLMService) *LLMProposer {
	return &LLMProposer{
		llmService: llmService,
		logger:     utils.GetLogger(),
	}
}

const proposerSystemPrompt = `You are a screenplay and game-saga revision assistant.
You receive one piece of user feedback plus the current state of exactly one document component.
Propose exactly ONE change: a single action with its target and payload.
For "modify", the payload must be a COMPLETE replacement entity with every field filled in, not a partial patch.
Never invent changes beyond what the feedback asks for.`

// ProposeCharacterChange 把反馈转成一个角色变更提案
func (p *LLMProposer) ProposeCharacterChange(ctx context.Context, feedback string, characters []models.Character, summary models.DocumentSummary) (*models.CharacterChange, error) {
	currentJSON, err := json.MarshalIndent(characters, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)

Current characters:
%s

User feedback: %s

Decide on exactly one change and return JSON with this shape:
{
  "action": "add" | "modify" | "remove",
  "target_name": "<name of the existing character for modify/remove>",
  "new_character": {
    "name": "...",
    "persona_type": "...",
    "appearance": "...",
    "description": "...",
    "personality": "...",
    "background": "..."
  }
}
For "modify", new_character must be the complete replacement entity. For "remove", omit new_character.`,
		summary.Title, summary.Genre, summary.Tone, string(currentJSON), feedback)

	result := &models.CharacterChange{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, errors.NewProposerFailureError("角色提案调用失败", err)
	}

	if err := validateAction(result.Action, false); err != nil {
		return nil, err
	}

	return result, nil
}

// ProposeLocationChange 把反馈转成一个地点变更提案
func (p *LLMProposer) ProposeLocationChange(ctx context.Context, feedback string, locations []models.Location, summary models.DocumentSummary) (*models.LocationChange, error) {
	currentJSON, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)

Current locations:
%s

User feedback: %s

Decide on exactly one change and return JSON with this shape:
{
  "action": "add" | "modify" | "remove",
  "target_name": "<name of the existing location for modify/remove>",
  "new_location": {
    "name": "...",
    "description": "...",
    "atmosphere": "..."
  }
}
For "modify", new_location must be the complete replacement entity. For "remove", omit new_location.`,
		summary.Title, summary.Genre, summary.Tone, string(currentJSON), feedback)

	result := &models.LocationChange{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, errors.NewProposerFailureError("地点提案调用失败", err)
	}

	if err := validateAction(result.Action, false); err != nil {
		return nil, err
	}

	return result, nil
}

// ProposeDialogueChange 把反馈转成一个台词变更提案
func (p *LLMProposer) ProposeDialogueChange(ctx context.Context, feedback string, lines []models.DialogueLine, summary models.DocumentSummary) (*models.DialogueChange, error) {
	currentJSON, err := json.MarshalIndent(lines, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)

Current dialogue lines (1-based order):
%s

User feedback: %s

Decide on exactly one change and return JSON with this shape:
{
  "action": "add" | "modify" | "remove",
  "identification": {
    "target_index": <1-based index, 0 if unused>,
    "target_character": "<character name, empty if unused>"
  },
  "new_dialogue": {"character_name": "...", "scene_number": <n>, "line": "..."},
  "modified_line": "<replacement text for modify>"
}
For "modify", only the line text changes; never change character attribution or scene number.`,
		summary.Title, summary.Genre, summary.Tone, string(currentJSON), feedback)

	result := &models.DialogueChange{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, errors.NewProposerFailureError("台词提案调用失败", err)
	}

	if err := validateAction(result.Action, false); err != nil {
		return nil, err
	}

	return result, nil
}

// ProposeSceneChange 把反馈转成一个场景变更提案
// policy.AllowIncrease 仅作为指导信号传入提示词，不对返回提案做硬性校验
func (p *LLMProposer) ProposeSceneChange(ctx context.Context, feedback string, scenes []models.Scene, policy models.ScenePolicy, summary models.DocumentSummary) (*models.SceneChange, error) {
	currentJSON, err := json.MarshalIndent(scenes, "", "  ")
	if err != nil {
		return nil, err
	}

	guidance := "The user did NOT ask for more scenes: prefer modify/remove over count-changing actions."
	if policy.AllowIncrease {
		guidance = "The user explicitly asked for more scenes: add or insert_between is appropriate."
	}

	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)
Original scene count: %d. %s

Current scenes:
%s

User feedback: %s

Decide on exactly one change and return JSON with this shape:
{
  "action": "add" | "modify" | "remove" | "insert_between",
  "target_scene_number": <scene number for modify/remove>,
  "insert_after_scene": <anchor scene number for insert_between>,
  "num_scenes_to_insert": <count for insert_between>,
  "new_scenes": [{"scene_number": 0, "environmental_context": "...", "subject_action": "...", "shot_type": "...", "camera_angle": "...", "camera_movement": "...", "camera_perspective": "...", "dialogue_lines": []}],
  "new_scene": {...same shape, for single-scene add/modify...}
}
Scene numbers in payloads are assigned by the engine; leave them 0.`,
		summary.Title, summary.Genre, summary.Tone, policy.OriginalCount, guidance, string(currentJSON), feedback)

	result := &models.SceneChange{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, errors.NewProposerFailureError("场景提案调用失败", err)
	}

	if err := validateAction(result.Action, true); err != nil {
		return nil, err
	}

	return result, nil
}

// ProposeDraft 根据反馈重写草稿全文
func (p *LLMProposer) ProposeDraft(ctx context.Context, feedback string, currentDraft string, summary models.DocumentSummary) (string, error) {
	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)

Current draft:
%s

User feedback: %s

Rewrite the draft applying ONLY the requested change. Keep everything the feedback does not mention as close to the original as possible. Return JSON: {"draft": "<full revised draft>"}`,
		summary.Title, summary.Genre, summary.Tone, currentDraft, feedback)

	result := &struct {
		Draft string `json:"draft"`
	}{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return "", errors.NewProposerFailureError("草稿提案调用失败", err)
	}

	if result.Draft == "" {
		return "", errors.NewProposerFailureError("草稿提案返回空文本", nil)
	}

	return result.Draft, nil
}

// ProposeVisualLookbook 根据反馈重写视觉手册
func (p *LLMProposer) ProposeVisualLookbook(ctx context.Context, feedback string, current map[string]interface{}, summary models.DocumentSummary) (map[string]interface{}, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Document: %q (genre: %s, tone: %s)

Current visual lookbook:
%s

User feedback: %s

Return the complete revised visual lookbook as a JSON object, changing only what the feedback asks for and preserving every other key and value verbatim.`,
		summary.Title, summary.Genre, summary.Tone, string(currentJSON), feedback)

	result := map[string]interface{}{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, &result); err != nil {
		return nil, errors.NewProposerFailureError("视觉手册提案调用失败", err)
	}

	if len(result) == 0 {
		return nil, errors.NewProposerFailureError("视觉手册提案返回空对象", nil)
	}

	return result, nil
}

// Classify 实现Classifier接口：LLM辅助的反馈分类
// 依赖组件只用于记录，核心从不自动应用
func (p *LLMProposer) Classify(ctx context.Context, feedback string, summary models.DocumentSummary) (*models.Classification, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Document summary:
%s

User feedback: %s

Classify this feedback to exactly ONE primary component from: draft, characters, dialogue, locations, visual_lookbook, scenes.
Also list components that might be indirectly affected (they will only be logged, never changed automatically).
Return JSON: {"primary_component": "...", "dependent_components": ["..."], "reasoning": "..."}`,
		string(summaryJSON), feedback)

	result := &models.Classification{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, err
	}

	if !models.IsValidComponent(result.PrimaryComponent) {
		return nil, fmt.Errorf("分类器返回了未知组件: %q", result.PrimaryComponent)
	}

	return result, nil
}

// AnalyzeDocument 实现DocumentAnalyzer接口：全文档连贯性分析
func (p *LLMProposer) AnalyzeDocument(ctx context.Context, feedback string, doc *models.NarrativeDocument) (*models.DocumentAnalysis, error) {
	docJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Full document:
%s

User feedback: %s

Assess overall story coherence and decide which components need updating to satisfy the feedback.
Return JSON:
{
  "story_coherence_score": <0-100>,
  "overall_assessment": "...",
  "suggested_improvements": ["..."],
  "component_feedback": [
    {"component_name": "<draft|characters|dialogue|locations|visual_lookbook|scenes>", "needs_update": true|false, "priority": <1 is highest>, "feedback": "<component-scoped instruction>"}
  ]
}`,
		string(docJSON), feedback)

	result := &models.DocumentAnalysis{}
	if err := p.llmService.CreateStructuredCompletion(ctx, prompt, proposerSystemPrompt, result); err != nil {
		return nil, errors.NewProposerFailureError("全文档分析调用失败", err)
	}

	return result, nil
}

// validateAction 检查提案动作是否在允许范围内
// 畸形动作按提案器失败处理，让修订降级为无操作
func validateAction(action models.ProposalAction, allowInsert bool) error {
	switch action {
	case models.ActionAdd, models.ActionModify, models.ActionRemove:
		return nil
	case models.ActionInsertBetween:
		if allowInsert {
			return nil
		}
	}
	return errors.NewProposerFailureError(fmt.Sprintf("提案返回了无效动作 %q", action), nil)
}
