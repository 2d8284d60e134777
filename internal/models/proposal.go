// internal/models/proposal.go
package models

// ProposalAction 表示变更提案的动作类型
type ProposalAction string

const (
	ActionAdd           ProposalAction = "add"
	ActionModify        ProposalAction = "modify"
	ActionRemove        ProposalAction = "remove"
	ActionInsertBetween ProposalAction = "insert_between"
)

// CharacterChange 针对角色集合的单个变更提案
type CharacterChange struct {
	Action       ProposalAction `json:"action"`
	TargetName   string         `json:"target_name,omitempty"`
	NewCharacter *Character     `json:"new_character,omitempty"`
}

// LocationChange 针对地点集合的单个变更提案
type LocationChange struct {
	Action      ProposalAction `json:"action"`
	TargetName  string         `json:"target_name,omitempty"`
	NewLocation *Location      `json:"new_location,omitempty"`
}

// DialogueIdentification 通过1-based序号或角色名定位一条台词
type DialogueIdentification struct {
	TargetIndex     int    `json:"target_index,omitempty"`
	TargetCharacter string `json:"target_character,omitempty"`
}

// DialogueChange 针对台词集合的单个变更提案
// modify只替换台词文本，不改变角色归属和场景编号
type DialogueChange struct {
	Action         ProposalAction          `json:"action"`
	Identification *DialogueIdentification `json:"identification,omitempty"`
	NewDialogue    *DialogueLine           `json:"new_dialogue,omitempty"`
	ModifiedLine   string                  `json:"modified_line,omitempty"`
	SceneNumber    int                     `json:"scene_number,omitempty"`
}

// SceneChange 针对场景集合的单个变更提案
// insert_between在指定场景之后插入并自动重新编号
type SceneChange struct {
	Action            ProposalAction `json:"action"`
	TargetSceneNumber int            `json:"target_scene_number,omitempty"`
	InsertAfterScene  int            `json:"insert_after_scene,omitempty"`
	NumScenesToInsert int            `json:"num_scenes_to_insert,omitempty"`
	NewScenes         []Scene        `json:"new_scenes,omitempty"`
	NewScene          *Scene         `json:"new_scene,omitempty"`
}

// PatchOutcome 表示一次组件补丁的结果分类
type PatchOutcome string

const (
	// OutcomeApplied 变更已应用
	OutcomeApplied PatchOutcome = "applied"
	// OutcomeWarning 无操作，原集合原样保留
	OutcomeWarning PatchOutcome = "warning"
	// OutcomeFailed 补丁过程出错，组件已恢复到修订前状态
	OutcomeFailed PatchOutcome = "failed"
)

// RenameEvent 表示修改操作导致的实体标识变更
type RenameEvent struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// PropagationReport 记录名称变更传播触及的位置数量（仅用于诊断）
type PropagationReport struct {
	DialogueLines  int `json:"dialogue_lines"`
	SceneDialogues int `json:"scene_dialogues"`
	SceneFields    int `json:"scene_fields"`
	DraftTouched   int `json:"draft_touched"`
}

// Total 返回传播触及的总位置数
func (r PropagationReport) Total() int {
	return r.DialogueLines + r.SceneDialogues + r.SceneFields + r.DraftTouched
}

// ComponentResult 一次修订中单个组件的处理结果
type ComponentResult struct {
	Component   ComponentName      `json:"component"`
	Outcome     PatchOutcome       `json:"outcome"`
	Message     string             `json:"message,omitempty"`
	Rename      *RenameEvent       `json:"rename,omitempty"`
	Propagation *PropagationReport `json:"propagation,omitempty"`
}

// RevisionPhase 表示修订状态机的阶段
type RevisionPhase string

const (
	PhaseIdle        RevisionPhase = "idle"
	PhaseRouting     RevisionPhase = "routing"
	PhaseProposing   RevisionPhase = "proposing"
	PhasePatching    RevisionPhase = "patching"
	PhasePropagating RevisionPhase = "propagating"
	PhaseAssembling  RevisionPhase = "assembling"
	PhaseCommitted   RevisionPhase = "committed"
	PhaseFailed      RevisionPhase = "failed"
)

// RevisionRequest 调用方发起的一次修订请求，参数原样传入核心
type RevisionRequest struct {
	DocumentID     string `json:"document_id"`
	Feedback       string `json:"feedback"`
	TargetedUpdate bool   `json:"targeted_update"`
	AutoApply      bool   `json:"auto_apply"`
}

// RevisionResult 一次修订的完整结果
type RevisionResult struct {
	DocumentID string            `json:"document_id"`
	Phase      RevisionPhase     `json:"phase"`
	Components []ComponentResult `json:"components"`
	Dependents []ComponentName   `json:"dependent_components,omitempty"`
	Reasoning  string            `json:"reasoning,omitempty"`
	ExportJSON string            `json:"export_json,omitempty"`
	ExportMD   string            `json:"export_markdown,omitempty"`
}

// Classification 分类器输出：主组件加上仅供记录的候选依赖组件
type Classification struct {
	PrimaryComponent    ComponentName   `json:"primary_component"`
	DependentComponents []ComponentName `json:"dependent_components,omitempty"`
	Reasoning           string          `json:"reasoning,omitempty"`
}

// ComponentFeedback 全文档分析模式下对单个组件的反馈
type ComponentFeedback struct {
	ComponentName ComponentName `json:"component_name"`
	NeedsUpdate   bool          `json:"needs_update"`
	Priority      int           `json:"priority"`
	Feedback      string        `json:"feedback,omitempty"`
}

// DocumentAnalysis 全文档分析结果
type DocumentAnalysis struct {
	StoryCoherenceScore   int                 `json:"story_coherence_score"`
	OverallAssessment     string              `json:"overall_assessment"`
	SuggestedImprovements []string            `json:"suggested_improvements,omitempty"`
	ComponentFeedback     []ComponentFeedback `json:"component_feedback"`
}

// ComponentsToUpdate 返回分析认为需要更新的组件，按优先级排序前的原始顺序
func (a *DocumentAnalysis) ComponentsToUpdate() []ComponentFeedback {
	var out []ComponentFeedback
	for _, cf := range a.ComponentFeedback {
		if cf.NeedsUpdate {
			out = append(out, cf)
		}
	}
	return out
}
