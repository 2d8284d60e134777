// internal/services/propagation_service_test.go
package services

import (
	"encoding/json"
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func propagationDocument() *models.NarrativeDocument {
	return &models.NarrativeDocument{
		ID:    "prop_test",
		Title: "Midnight Errand",
		Draft: "Elena Cross steps into the Rusty Cafe. Elena Cross hesitates at the door.",
		Characters: []models.Character{
			{Name: "Elena Cross"},
			{Name: "Marcus Vale"},
		},
		Locations: []models.Location{{Name: "Rusty Cafe"}},
		DialogueLines: []models.DialogueLine{
			{CharacterName: "Elena Cross", SceneNumber: 1, Line: "You said midnight."},
			{CharacterName: "Marcus Vale", SceneNumber: 1, Line: "You're early."},
			{CharacterName: "Elena Cross", SceneNumber: 2, Line: "Stop watching the door."},
		},
		Scenes: []models.Scene{
			{
				SceneNumber:          1,
				EnvironmentalContext: "Inside the rusty cafe, neon on wet glass.",
				SubjectAction:        "Elena Cross slides into the booth. Elena Cross waits.",
				DialogueLines: []models.DialogueLine{
					{CharacterName: "Elena Cross", SceneNumber: 1, Line: "It's cold."},
				},
			},
			{
				SceneNumber:          2,
				EnvironmentalContext: "The counter of the Rusty Cafe.",
				SubjectAction:        "Elena checks the clock.",
			},
		},
	}
}

func TestPropagateCharacterRename(t *testing.T) {
	svc := NewPropagationService()
	doc := propagationDocument()
	before, err := json.Marshal(doc)
	require.NoError(t, err)

	updated, report := svc.PropagateCharacterRename(doc, models.RenameEvent{
		OldName: "Elena Cross",
		NewName: "Mara Cross",
	})

	// 台词归属：精确匹配全量替换
	assert.Equal(t, "Mara Cross", updated.DialogueLines[0].CharacterName)
	assert.Equal(t, "Marcus Vale", updated.DialogueLines[1].CharacterName)
	assert.Equal(t, "Mara Cross", updated.DialogueLines[2].CharacterName)
	assert.Equal(t, 2, report.DialogueLines)

	// 场景内嵌台词同样全量替换
	assert.Equal(t, "Mara Cross", updated.Scenes[0].DialogueLines[0].CharacterName)
	assert.Equal(t, 1, report.SceneDialogues)

	// 散文字段每个只替换第一处出现
	assert.Equal(t, "Mara Cross slides into the booth. Elena Cross waits.", updated.Scenes[0].SubjectAction)
	assert.Equal(t, "Mara Cross steps into the Rusty Cafe. Elena Cross hesitates at the door.", updated.Draft)
	assert.Equal(t, 1, report.DraftTouched)

	// 名字首词分支：全名未命中时替换首词
	assert.Equal(t, "Mara checks the clock.", updated.Scenes[1].SubjectAction)

	// 角色集合本身不在传播范围内
	assert.Equal(t, "Elena Cross", updated.Characters[0].Name)

	// 输入文档不被修改
	after, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestPropagateCharacterRename_FullNamePreemptsFirstToken(t *testing.T) {
	svc := NewPropagationService()
	doc := &models.NarrativeDocument{
		Draft: "Elena waits while Elena Cross reads the note.",
	}

	updated, report := svc.PropagateCharacterRename(doc, models.RenameEvent{
		OldName: "Elena Cross",
		NewName: "Mara Cross",
	})

	// 全名命中时首词分支不执行，前面的单独"Elena"保持原样
	assert.Equal(t, "Elena waits while Mara Cross reads the note.", updated.Draft)
	assert.Equal(t, 1, report.DraftTouched)
}

func TestPropagateCharacterRename_NoOpCases(t *testing.T) {
	svc := NewPropagationService()
	doc := propagationDocument()

	updated, report := svc.PropagateCharacterRename(doc, models.RenameEvent{
		OldName: "Elena Cross",
		NewName: "Elena Cross",
	})
	assert.Zero(t, report.Total())
	assert.Same(t, doc, updated)

	updated, report = svc.PropagateCharacterRename(doc, models.RenameEvent{NewName: "Mara"})
	assert.Zero(t, report.Total())
	assert.Same(t, doc, updated)
}

func TestPropagateLocationRename_CaseInsensitiveAllOccurrences(t *testing.T) {
	svc := NewPropagationService()
	doc := propagationDocument()

	updated, report := svc.PropagateLocationRename(doc, models.RenameEvent{
		OldName: "Rusty Cafe",
		NewName: "Riverside Park",
	})

	// 环境描述：不区分大小写，全量替换
	assert.Equal(t, "Inside the Riverside Park, neon on wet glass.", updated.Scenes[0].EnvironmentalContext)
	assert.Equal(t, "The counter of the Riverside Park.", updated.Scenes[1].EnvironmentalContext)
	assert.Equal(t, 2, report.SceneFields)

	// 草稿同样全量替换
	assert.Equal(t, "Elena Cross steps into the Riverside Park. Elena Cross hesitates at the door.", updated.Draft)
	assert.Equal(t, 1, report.DraftTouched)

	// 地点重命名不触碰台词和动作描述
	assert.Equal(t, "Elena Cross slides into the booth. Elena Cross waits.", updated.Scenes[0].SubjectAction)
	assert.Equal(t, "Elena Cross", updated.DialogueLines[0].CharacterName)
}

func TestPropagateLocationRename_SpecialCharactersInName(t *testing.T) {
	svc := NewPropagationService()
	doc := &models.NarrativeDocument{
		Draft: "They meet at Cafe (Old Town) after dark.",
		Scenes: []models.Scene{
			{SceneNumber: 1, EnvironmentalContext: "Outside cafe (old town)."},
		},
	}

	// 名称中的括号必须按字面匹配
	updated, report := svc.PropagateLocationRename(doc, models.RenameEvent{
		OldName: "Cafe (Old Town)",
		NewName: "Harbor Market",
	})

	assert.Equal(t, "They meet at Harbor Market after dark.", updated.Draft)
	assert.Equal(t, "Outside Harbor Market.", updated.Scenes[0].EnvironmentalContext)
	assert.Equal(t, 2, report.Total())
}

func TestReplaceNameOnce(t *testing.T) {
	got, ok := replaceNameOnce("Elena Cross waits. Elena Cross leaves.", "Elena Cross", "Mara Cross")
	assert.True(t, ok)
	assert.Equal(t, "Mara Cross waits. Elena Cross leaves.", got)

	got, ok = replaceNameOnce("Elena waits.", "Elena Cross", "Mara Cross")
	assert.True(t, ok)
	assert.Equal(t, "Mara waits.", got)

	_, ok = replaceNameOnce("Nobody here.", "Elena Cross", "Mara Cross")
	assert.False(t, ok)

	_, ok = replaceNameOnce("", "Elena Cross", "Mara Cross")
	assert.False(t, ok)
}
