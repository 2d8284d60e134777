// internal/services/reviser_service_test.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProposer 每个组件返回预设的提案或错误
type stubProposer struct {
	characterChange *models.CharacterChange
	locationChange  *models.LocationChange
	dialogueChange  *models.DialogueChange
	sceneChange     *models.SceneChange
	draft           string
	lookbook        map[string]interface{}
	err             error

	lastScenePolicy models.ScenePolicy
}

func (p *stubProposer) ProposeCharacterChange(ctx context.Context, feedback string, characters []models.Character, summary models.DocumentSummary) (*models.CharacterChange, error) {
	return p.characterChange, p.err
}

func (p *stubProposer) ProposeLocationChange(ctx context.Context, feedback string, locations []models.Location, summary models.DocumentSummary) (*models.LocationChange, error) {
	return p.locationChange, p.err
}

func (p *stubProposer) ProposeDialogueChange(ctx context.Context, feedback string, lines []models.DialogueLine, summary models.DocumentSummary) (*models.DialogueChange, error) {
	return p.dialogueChange, p.err
}

func (p *stubProposer) ProposeSceneChange(ctx context.Context, feedback string, scenes []models.Scene, policy models.ScenePolicy, summary models.DocumentSummary) (*models.SceneChange, error) {
	p.lastScenePolicy = policy
	return p.sceneChange, p.err
}

func (p *stubProposer) ProposeDraft(ctx context.Context, feedback string, currentDraft string, summary models.DocumentSummary) (string, error) {
	return p.draft, p.err
}

func (p *stubProposer) ProposeVisualLookbook(ctx context.Context, feedback string, current map[string]interface{}, summary models.DocumentSummary) (map[string]interface{}, error) {
	return p.lookbook, p.err
}

func newTestReviser(proposer Proposer, analyzer DocumentAnalyzer) *ReviserService {
	return NewReviserService(
		NewRouterService(nil),
		NewPatchService(),
		NewSceneService(),
		NewPropagationService(),
		proposer,
		analyzer,
	)
}

func reviserDocument() *models.NarrativeDocument {
	return &models.NarrativeDocument{
		ID:      "rev_test",
		Title:   "Midnight Errand",
		Genre:   "noir",
		Tone:    "tense",
		LogLine: "A courier takes one last job.",
		Draft:   "Elena Cross steps into the Rusty Cafe just before midnight.",
		Characters: []models.Character{
			{Name: "Elena Cross", PersonaType: "protagonist"},
			{Name: "Marcus Vale", PersonaType: "antagonist"},
		},
		Locations: []models.Location{
			{Name: "Rusty Cafe", Description: "All-night cafe.", Atmosphere: "smoky"},
		},
		DialogueLines: []models.DialogueLine{
			{CharacterName: "Elena Cross", SceneNumber: 1, Line: "You said midnight."},
			{CharacterName: "Marcus Vale", SceneNumber: 1, Line: "You're early."},
		},
		Scenes: []models.Scene{
			{
				SceneNumber:          1,
				EnvironmentalContext: "Inside the Rusty Cafe.",
				SubjectAction:        "Elena Cross slides into the booth.",
			},
			{
				SceneNumber:          2,
				EnvironmentalContext: "The counter of the Rusty Cafe.",
				SubjectAction:        "Marcus Vale stirs a cold coffee.",
			},
		},
		VisualLookbook: map[string]interface{}{"palette": "sodium orange"},
		ScenePolicy:    models.ScenePolicy{OriginalCount: 2},
	}
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestRevise_TargetedLocationRenameEndToEnd(t *testing.T) {
	doc := reviserDocument()
	inputJSON := mustJSON(t, doc)

	proposer := &stubProposer{
		locationChange: &models.LocationChange{
			Action:     models.ActionModify,
			TargetName: "Rusty Cafe",
			NewLocation: &models.Location{
				Name:        "Riverside Park",
				Description: "An empty park by the river.",
			},
		},
	}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "Change the location from the cafe to a park",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	require.Len(t, result.Components, 1)
	comp := result.Components[0]
	assert.Equal(t, models.ComponentLocations, comp.Component)
	assert.Equal(t, models.OutcomeApplied, comp.Outcome)
	require.NotNil(t, comp.Rename)
	assert.Equal(t, "Rusty Cafe", comp.Rename.OldName)

	// 目标组件已替换
	require.Len(t, updated.Locations, 1)
	assert.Equal(t, "Riverside Park", updated.Locations[0].Name)

	// 重命名传播到环境描述和草稿
	assert.Equal(t, "Inside the Riverside Park.", updated.Scenes[0].EnvironmentalContext)
	assert.Equal(t, "The counter of the Riverside Park.", updated.Scenes[1].EnvironmentalContext)
	assert.Contains(t, updated.Draft, "Riverside Park")
	require.NotNil(t, comp.Propagation)
	assert.Equal(t, 3, comp.Propagation.Total())

	// 传播范围之外的字段逐字节保持不变
	assert.Equal(t, mustJSON(t, doc.Characters), mustJSON(t, updated.Characters))
	assert.Equal(t, mustJSON(t, doc.DialogueLines), mustJSON(t, updated.DialogueLines))
	assert.Equal(t, mustJSON(t, doc.VisualLookbook), mustJSON(t, updated.VisualLookbook))
	assert.Equal(t, doc.Scenes[0].SubjectAction, updated.Scenes[0].SubjectAction)
	assert.Equal(t, doc.Title, updated.Title)
	assert.Equal(t, doc.Genre, updated.Genre)
	assert.Equal(t, doc.Tone, updated.Tone)

	// 瞬态状态不进入提交后的文档
	assert.Nil(t, updated.Pending)
	assert.False(t, updated.ScenePolicy.AllowIncrease)

	// 输入文档未被修改
	assert.Equal(t, inputJSON, mustJSON(t, doc))
}

func TestRevise_CharacterRenamePropagatesToDialogue(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{
		characterChange: &models.CharacterChange{
			Action:       models.ActionModify,
			TargetName:   "Elena Cross",
			NewCharacter: &models.Character{Name: "Mara Cross", PersonaType: "protagonist"},
		},
	}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "Rename the character Elena Cross to Mara Cross",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	assert.Equal(t, "Mara Cross", updated.Characters[0].Name)
	// 台词归属全量跟随
	assert.Equal(t, "Mara Cross", updated.DialogueLines[0].CharacterName)
	assert.Equal(t, "Marcus Vale", updated.DialogueLines[1].CharacterName)
	// 散文字段第一处出现跟随
	assert.Equal(t, "Mara Cross slides into the booth.", updated.Scenes[0].SubjectAction)
	// 台词文本本身不被触碰
	assert.Equal(t, "You said midnight.", updated.DialogueLines[0].Line)
}

func TestRevise_ProposerFailureKeepsDocumentIntact(t *testing.T) {
	doc := reviserDocument()
	inputJSON := mustJSON(t, doc)

	proposer := &stubProposer{err: fmt.Errorf("provider timeout")}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "The dialogue sounds too formal",
		TargetedUpdate: true,
	})
	require.NoError(t, err, "提案器失败不是致命错误")

	assert.Equal(t, models.PhaseFailed, result.Phase)
	require.Len(t, result.Components, 1)
	assert.Equal(t, models.OutcomeFailed, result.Components[0].Outcome)

	// 返回的文档与输入语义等价
	assert.Equal(t, inputJSON, mustJSON(t, updated))
}

func TestRevise_WarningOutcomeCommitsUnchangedComponent(t *testing.T) {
	doc := reviserDocument()

	// 目标角色不存在：warning，集合原样保留
	proposer := &stubProposer{
		characterChange: &models.CharacterChange{
			Action:       models.ActionModify,
			TargetName:   "Nobody",
			NewCharacter: &models.Character{Name: "Nobody"},
		},
	}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "Make the character Nobody nicer",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	assert.Equal(t, models.OutcomeWarning, result.Components[0].Outcome)
	assert.Equal(t, mustJSON(t, doc.Characters), mustJSON(t, updated.Characters))
}

func TestRevise_SceneIncreaseGatePassedToProposer(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{
		sceneChange: &models.SceneChange{
			Action:   models.ActionAdd,
			NewScene: &models.Scene{SubjectAction: "new scene"},
		},
	}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "Please add another scene at the end",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	// 触发短语命中：授权标志传给提案器
	assert.True(t, proposer.lastScenePolicy.AllowIncrease)
	assert.Equal(t, 2, proposer.lastScenePolicy.OriginalCount)
	require.Len(t, updated.Scenes, 3)
	assert.Equal(t, 3, updated.Scenes[2].SceneNumber)
	// 授权标志是瞬态的，提交后清除
	assert.False(t, updated.ScenePolicy.AllowIncrease)
}

func TestRevise_SceneIncreaseGateNotTriggered(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{
		sceneChange: &models.SceneChange{
			Action:            models.ActionModify,
			TargetSceneNumber: 2,
			NewScene:          &models.Scene{SubjectAction: "tightened"},
		},
	}
	reviser := newTestReviser(proposer, nil)

	_, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "Scene two feels rushed, tighten it",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	assert.False(t, proposer.lastScenePolicy.AllowIncrease)
}

func TestRevise_DraftRewrite(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{draft: "A tighter opening paragraph."}
	reviser := newTestReviser(proposer, nil)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "The story opening drags",
		TargetedUpdate: true,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	assert.Equal(t, models.ComponentDraft, result.Components[0].Component)
	assert.Equal(t, "A tighter opening paragraph.", updated.Draft)
	// 其余组件逐字节不变
	assert.Equal(t, mustJSON(t, doc.Scenes), mustJSON(t, updated.Scenes))
	assert.Equal(t, mustJSON(t, doc.Characters), mustJSON(t, updated.Characters))
}

func TestRevise_ValidatesInput(t *testing.T) {
	reviser := newTestReviser(&stubProposer{}, nil)

	_, _, err := reviser.Revise(context.Background(), nil, models.RevisionRequest{Feedback: "x"})
	assert.Error(t, err)

	_, _, err = reviser.Revise(context.Background(), reviserDocument(), models.RevisionRequest{})
	assert.Error(t, err)
}

// stubAnalyzer 返回固定的全文档分析结果
type stubAnalyzer struct {
	analysis *models.DocumentAnalysis
	err      error
}

func (s *stubAnalyzer) AnalyzeDocument(ctx context.Context, feedback string, doc *models.NarrativeDocument) (*models.DocumentAnalysis, error) {
	return s.analysis, s.err
}

func TestRevise_WholeDocumentUpdatesComponentsByPriority(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{
		draft: "Rewritten draft.",
		locationChange: &models.LocationChange{
			Action:      models.ActionAdd,
			NewLocation: &models.Location{Name: "Pier 9"},
		},
	}
	analyzer := &stubAnalyzer{
		analysis: &models.DocumentAnalysis{
			OverallAssessment: "draft and locations need work",
			ComponentFeedback: []models.ComponentFeedback{
				{ComponentName: models.ComponentLocations, NeedsUpdate: true, Priority: 2},
				{ComponentName: models.ComponentDraft, NeedsUpdate: true, Priority: 1},
				{ComponentName: models.ComponentScenes, NeedsUpdate: false, Priority: 3},
			},
		},
	}
	reviser := newTestReviser(proposer, analyzer)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "polish everything",
		TargetedUpdate: false,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	// 只处理NeedsUpdate的组件，按优先级排序：draft先于locations
	require.Len(t, result.Components, 2)
	assert.Equal(t, models.ComponentDraft, result.Components[0].Component)
	assert.Equal(t, models.ComponentLocations, result.Components[1].Component)

	assert.Equal(t, "Rewritten draft.", updated.Draft)
	require.Len(t, updated.Locations, 2)
	assert.Equal(t, "Pier 9", updated.Locations[1].Name)
}

func TestRevise_WholeDocumentAnalyzerFailureFallsBackToTargeted(t *testing.T) {
	doc := reviserDocument()

	proposer := &stubProposer{
		dialogueChange: &models.DialogueChange{
			Action:         models.ActionModify,
			Identification: &models.DialogueIdentification{TargetIndex: 1},
			ModifiedLine:   "You said midnight. I counted.",
		},
	}
	analyzer := &stubAnalyzer{err: fmt.Errorf("analysis unavailable")}
	reviser := newTestReviser(proposer, analyzer)

	updated, result, err := reviser.Revise(context.Background(), doc, models.RevisionRequest{
		DocumentID:     doc.ID,
		Feedback:       "The dialogue sounds too stiff",
		TargetedUpdate: false,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PhaseCommitted, result.Phase)
	require.Len(t, result.Components, 1)
	assert.Equal(t, models.ComponentDialogue, result.Components[0].Component)
	assert.Equal(t, "You said midnight. I counted.", updated.DialogueLines[0].Line)
}
