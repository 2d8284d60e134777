// internal/services/patch_service_test.go
package services

import (
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCharacters() []models.Character {
	return []models.Character{
		{Name: "Elena Cross", PersonaType: "protagonist", Description: "A midnight courier."},
		{Name: "Marcus Vale", PersonaType: "antagonist", Description: "A fixer."},
	}
}

func TestPatchCharacters_Add(t *testing.T) {
	svc := NewPatchService()
	original := sampleCharacters()

	updated, result := svc.PatchCharacters(original, &models.CharacterChange{
		Action:       models.ActionAdd,
		NewCharacter: &models.Character{Name: "Ines Duarte", PersonaType: "ally"},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 3)
	assert.Equal(t, "Ines Duarte", updated[2].Name)
	// 原集合不被修改
	assert.Len(t, original, 2)
}

func TestPatchCharacters_ModifyIsFullReplacement(t *testing.T) {
	svc := NewPatchService()
	original := sampleCharacters()

	updated, result := svc.PatchCharacters(original, &models.CharacterChange{
		Action:     models.ActionModify,
		TargetName: "elena cross", // 不区分大小写
		NewCharacter: &models.Character{
			Name:        "Elena Cross",
			PersonaType: "protagonist",
			Description: "A midnight courier with nothing left to lose.",
		},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Nil(t, result.Rename, "名称未变不应产生重命名事件")
	// 整体替换：未在载荷中给出的字段一并被清空
	assert.Empty(t, updated[0].Personality)
	assert.Equal(t, "A midnight courier with nothing left to lose.", updated[0].Description)
	// 非目标实体原样保留
	assert.Equal(t, original[1], updated[1])
}

func TestPatchCharacters_ModifyEmitsRenameEvent(t *testing.T) {
	svc := NewPatchService()

	updated, result := svc.PatchCharacters(sampleCharacters(), &models.CharacterChange{
		Action:       models.ActionModify,
		TargetName:   "Elena Cross",
		NewCharacter: &models.Character{Name: "Mara Cross", PersonaType: "protagonist"},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.NotNil(t, result.Rename)
	assert.Equal(t, "Elena Cross", result.Rename.OldName)
	assert.Equal(t, "Mara Cross", result.Rename.NewName)
	assert.Equal(t, "Mara Cross", updated[0].Name)
}

func TestPatchCharacters_Remove(t *testing.T) {
	svc := NewPatchService()

	updated, result := svc.PatchCharacters(sampleCharacters(), &models.CharacterChange{
		Action:     models.ActionRemove,
		TargetName: "Marcus Vale",
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 1)
	assert.Equal(t, "Elena Cross", updated[0].Name)
}

func TestPatchCharacters_Warnings(t *testing.T) {
	svc := NewPatchService()
	original := sampleCharacters()

	tests := []struct {
		name   string
		change *models.CharacterChange
	}{
		{"提案为空", nil},
		{"add缺少载荷", &models.CharacterChange{Action: models.ActionAdd}},
		{"modify缺少载荷", &models.CharacterChange{Action: models.ActionModify, TargetName: "Elena Cross"}},
		{"目标不存在", &models.CharacterChange{
			Action:       models.ActionModify,
			TargetName:   "Nobody",
			NewCharacter: &models.Character{Name: "Nobody"},
		}},
		{"remove目标不存在", &models.CharacterChange{Action: models.ActionRemove, TargetName: "Nobody"}},
		{"未知动作", &models.CharacterChange{Action: "merge"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, result := svc.PatchCharacters(original, tt.change)
			assert.Equal(t, models.OutcomeWarning, result.Outcome)
			// 无操作：原集合原样返回
			assert.Equal(t, original, updated)
		})
	}
}

func TestPatchLocations_ModifyEmitsRenameEvent(t *testing.T) {
	svc := NewPatchService()
	locations := []models.Location{
		{Name: "Rusty Cafe", Description: "All-night cafe.", Atmosphere: "smoky"},
	}

	updated, result := svc.PatchLocations(locations, &models.LocationChange{
		Action:     models.ActionModify,
		TargetName: "rusty cafe",
		NewLocation: &models.Location{
			Name:        "Riverside Park",
			Description: "An empty park by the river.",
		},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.NotNil(t, result.Rename)
	assert.Equal(t, "Rusty Cafe", result.Rename.OldName)
	assert.Equal(t, "Riverside Park", result.Rename.NewName)
	assert.Equal(t, "Riverside Park", updated[0].Name)
	// 整体替换清空未给出的字段
	assert.Empty(t, updated[0].Atmosphere)
}

func TestPatchLocations_AddAndRemove(t *testing.T) {
	svc := NewPatchService()
	locations := []models.Location{{Name: "Rusty Cafe"}}

	updated, result := svc.PatchLocations(locations, &models.LocationChange{
		Action:      models.ActionAdd,
		NewLocation: &models.Location{Name: "Pier 9"},
	})
	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 2)

	updated, result = svc.PatchLocations(updated, &models.LocationChange{
		Action:     models.ActionRemove,
		TargetName: "Rusty Cafe",
	})
	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 1)
	assert.Equal(t, "Pier 9", updated[0].Name)
}

func sampleDialogue() []models.DialogueLine {
	return []models.DialogueLine{
		{CharacterName: "Elena Cross", SceneNumber: 1, Line: "You said midnight."},
		{CharacterName: "Marcus Vale", SceneNumber: 1, Line: "You're early."},
		{CharacterName: "Elena Cross", SceneNumber: 2, Line: "Stop watching the door."},
	}
}

func TestPatchDialogueLines_ModifyByIndex(t *testing.T) {
	svc := NewPatchService()

	updated, result := svc.PatchDialogueLines(sampleDialogue(), &models.DialogueChange{
		Action:         models.ActionModify,
		Identification: &models.DialogueIdentification{TargetIndex: 2},
		ModifiedLine:   "You're early. Sit down.",
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Equal(t, "You're early. Sit down.", updated[1].Line)
	// modify只改台词文本，归属与场景不变
	assert.Equal(t, "Marcus Vale", updated[1].CharacterName)
	assert.Equal(t, 1, updated[1].SceneNumber)
}

func TestPatchDialogueLines_ModifyByCharacterMatchesFirst(t *testing.T) {
	svc := NewPatchService()

	updated, result := svc.PatchDialogueLines(sampleDialogue(), &models.DialogueChange{
		Action:         models.ActionModify,
		Identification: &models.DialogueIdentification{TargetCharacter: "elena cross"},
		ModifiedLine:   "You said midnight. I counted.",
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	// 角色名定位取首个匹配
	assert.Equal(t, "You said midnight. I counted.", updated[0].Line)
	assert.Equal(t, "Stop watching the door.", updated[2].Line)
}

func TestPatchDialogueLines_IndexTakesPriorityOverCharacter(t *testing.T) {
	svc := NewPatchService()

	updated, result := svc.PatchDialogueLines(sampleDialogue(), &models.DialogueChange{
		Action: models.ActionModify,
		Identification: &models.DialogueIdentification{
			TargetIndex:     3,
			TargetCharacter: "Marcus Vale",
		},
		ModifiedLine: "Then stop watching me.",
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Equal(t, "Then stop watching me.", updated[2].Line)
	assert.Equal(t, "You're early.", updated[1].Line)
}

func TestPatchDialogueLines_AddAndRemove(t *testing.T) {
	svc := NewPatchService()
	lines := sampleDialogue()

	updated, result := svc.PatchDialogueLines(lines, &models.DialogueChange{
		Action:      models.ActionAdd,
		NewDialogue: &models.DialogueLine{CharacterName: "Marcus Vale", SceneNumber: 2, Line: "I never watch doors."},
	})
	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 4)

	updated, result = svc.PatchDialogueLines(updated, &models.DialogueChange{
		Action:         models.ActionRemove,
		Identification: &models.DialogueIdentification{TargetIndex: 1},
	})
	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 3)
	assert.Equal(t, "You're early.", updated[0].Line)
}

func TestPatchDialogueLines_Warnings(t *testing.T) {
	svc := NewPatchService()
	lines := sampleDialogue()

	_, result := svc.PatchDialogueLines(lines, &models.DialogueChange{
		Action:         models.ActionModify,
		Identification: &models.DialogueIdentification{TargetIndex: 99},
		ModifiedLine:   "unreachable",
	})
	assert.Equal(t, models.OutcomeWarning, result.Outcome)

	_, result = svc.PatchDialogueLines(lines, &models.DialogueChange{
		Action:         models.ActionModify,
		Identification: &models.DialogueIdentification{TargetIndex: 1},
	})
	assert.Equal(t, models.OutcomeWarning, result.Outcome, "modify缺少替换文本应为warning")

	_, result = svc.PatchDialogueLines(lines, &models.DialogueChange{
		Action: models.ActionRemove,
	})
	assert.Equal(t, models.OutcomeWarning, result.Outcome, "缺少定位信息应为warning")
}
