// internal/services/scene_service_test.go
package services

import (
	"fmt"
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedScenes(n int) []models.Scene {
	scenes := make([]models.Scene, n)
	for i := range scenes {
		scenes[i] = models.Scene{
			SceneNumber:   i + 1,
			SubjectAction: fmt.Sprintf("action %d", i+1),
		}
	}
	return scenes
}

func sceneNumbers(scenes []models.Scene) []int {
	numbers := make([]int, len(scenes))
	for i, s := range scenes {
		numbers[i] = s.SceneNumber
	}
	return numbers
}

func TestPatchScenes_AddAppendsAfterMax(t *testing.T) {
	svc := NewSceneService()
	scenes := numberedScenes(3)

	updated, result := svc.PatchScenes(scenes, &models.SceneChange{
		Action:   models.ActionAdd,
		NewScene: &models.Scene{SubjectAction: "new ending"},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 4)
	assert.Equal(t, 4, updated[3].SceneNumber)
	assert.Equal(t, "new ending", updated[3].SubjectAction)
}

func TestPatchScenes_AddMultiple(t *testing.T) {
	svc := NewSceneService()

	updated, result := svc.PatchScenes(numberedScenes(2), &models.SceneChange{
		Action: models.ActionAdd,
		NewScenes: []models.Scene{
			{SubjectAction: "first extra"},
			{SubjectAction: "second extra"},
		},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Equal(t, []int{1, 2, 3, 4}, sceneNumbers(updated))
}

func TestPatchScenes_InsertBetweenRenumbers(t *testing.T) {
	svc := NewSceneService()
	scenes := numberedScenes(8)

	updated, result := svc.PatchScenes(scenes, &models.SceneChange{
		Action:            models.ActionInsertBetween,
		InsertAfterScene:  1,
		NumScenesToInsert: 2,
		NewScenes: []models.Scene{
			{SubjectAction: "inserted A"},
			{SubjectAction: "inserted B"},
		},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 10)
	// 插入后编号恰为1..10连续递增
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, sceneNumbers(updated))
	// 新场景占据锚点之后的编号
	assert.Equal(t, "inserted A", updated[1].SubjectAction)
	assert.Equal(t, "inserted B", updated[2].SubjectAction)
	// 原场景2..8整体后移为4..10，相对顺序不变
	assert.Equal(t, "action 2", updated[3].SubjectAction)
	assert.Equal(t, "action 8", updated[9].SubjectAction)
	// 原集合不被修改
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, sceneNumbers(scenes))
}

func TestPatchScenes_InsertBetweenClampsCount(t *testing.T) {
	svc := NewSceneService()

	// 声明插入3个但只提供1个载荷，按实际载荷数插入
	updated, result := svc.PatchScenes(numberedScenes(2), &models.SceneChange{
		Action:            models.ActionInsertBetween,
		InsertAfterScene:  1,
		NumScenesToInsert: 3,
		NewScenes:         []models.Scene{{SubjectAction: "only one"}},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Equal(t, []int{1, 2, 3}, sceneNumbers(updated))
	assert.Equal(t, "only one", updated[1].SubjectAction)
}

func TestPatchScenes_InsertBetweenMissingAnchorAppends(t *testing.T) {
	svc := NewSceneService()

	// 锚点不存在：退化为末尾追加，不算错误
	updated, result := svc.PatchScenes(numberedScenes(3), &models.SceneChange{
		Action:           models.ActionInsertBetween,
		InsertAfterScene: 42,
		NewScenes:        []models.Scene{{SubjectAction: "fallback"}},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	require.Len(t, updated, 4)
	assert.Equal(t, 4, updated[3].SceneNumber)
	assert.Equal(t, "fallback", updated[3].SubjectAction)
}

func TestPatchScenes_ModifyPreservesSceneNumber(t *testing.T) {
	svc := NewSceneService()

	updated, result := svc.PatchScenes(numberedScenes(3), &models.SceneChange{
		Action:            models.ActionModify,
		TargetSceneNumber: 2,
		NewScene: &models.Scene{
			SceneNumber:   99, // 提案中的编号被忽略
			SubjectAction: "rewritten",
			ShotType:      "close-up",
		},
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	assert.Equal(t, 2, updated[1].SceneNumber)
	assert.Equal(t, "rewritten", updated[1].SubjectAction)
	// 非目标场景不变
	assert.Equal(t, "action 1", updated[0].SubjectAction)
	assert.Equal(t, "action 3", updated[2].SubjectAction)
}

func TestPatchScenes_RemoveLeavesNumberingGap(t *testing.T) {
	svc := NewSceneService()

	updated, result := svc.PatchScenes(numberedScenes(4), &models.SceneChange{
		Action:            models.ActionRemove,
		TargetSceneNumber: 2,
	})

	assert.Equal(t, models.OutcomeApplied, result.Outcome)
	// remove不重新编号，编号出现空洞
	assert.Equal(t, []int{1, 3, 4}, sceneNumbers(updated))
}

func TestPatchScenes_Warnings(t *testing.T) {
	svc := NewSceneService()
	scenes := numberedScenes(2)

	tests := []struct {
		name   string
		change *models.SceneChange
	}{
		{"提案为空", nil},
		{"add缺少载荷", &models.SceneChange{Action: models.ActionAdd}},
		{"insert缺少载荷", &models.SceneChange{Action: models.ActionInsertBetween, InsertAfterScene: 1}},
		{"modify缺少载荷", &models.SceneChange{Action: models.ActionModify, TargetSceneNumber: 1}},
		{"modify目标不存在", &models.SceneChange{
			Action:            models.ActionModify,
			TargetSceneNumber: 9,
			NewScene:          &models.Scene{},
		}},
		{"remove目标不存在", &models.SceneChange{Action: models.ActionRemove, TargetSceneNumber: 9}},
		{"未知动作", &models.SceneChange{Action: "swap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, result := svc.PatchScenes(scenes, tt.change)
			assert.Equal(t, models.OutcomeWarning, result.Outcome)
			assert.Equal(t, scenes, updated)
		})
	}
}
