// internal/services/scene_service.go
package services

import (
	"fmt"
	"sort"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// SceneService 针对有序编号场景集合的补丁原语
// 在通用add/modify/remove之上增加insert_between（插入并整体重新编号）
// remove不重新编号，留下的编号空洞是既定行为
type SceneService struct {
	logger *utils.Logger
}

// NewSceneService 创建场景服务
func NewSceneService() *SceneService {
	return &SceneService{
		logger: utils.GetLogger(),
	}
}

// PatchScenes 对场景集合应用一个变更提案
func (s *SceneService) PatchScenes(scenes []models.Scene, change *models.SceneChange) ([]models.Scene, PatchResult) {
	if change == nil {
		return scenes, warningResult("场景变更提案为空，保留原集合")
	}

	switch change.Action {
	case models.ActionAdd:
		return s.appendScene(scenes, change)

	case models.ActionInsertBetween:
		return s.insertBetween(scenes, change)

	case models.ActionModify:
		if change.NewScene == nil {
			return scenes, warningResult("modify缺少场景载荷，保留原集合")
		}
		idx := findSceneIndex(scenes, change.TargetSceneNumber)
		if idx < 0 {
			return scenes, warningResult(fmt.Sprintf("未找到场景 %d，保留原集合", change.TargetSceneNumber))
		}
		updated := make([]models.Scene, len(scenes))
		copy(updated, scenes)
		replacement := *change.NewScene
		// 整体替换但保留原编号，场景的位置标识不随内容修改而改变
		replacement.SceneNumber = scenes[idx].SceneNumber
		updated[idx] = replacement
		return updated, appliedResult(fmt.Sprintf("已修改场景 %d", replacement.SceneNumber))

	case models.ActionRemove:
		idx := findSceneIndex(scenes, change.TargetSceneNumber)
		if idx < 0 {
			return scenes, warningResult(fmt.Sprintf("未找到场景 %d，保留原集合", change.TargetSceneNumber))
		}
		updated := make([]models.Scene, 0, len(scenes)-1)
		updated = append(updated, scenes[:idx]...)
		updated = append(updated, scenes[idx+1:]...)
		// 后续场景不重新编号，编号出现空洞
		return updated, appliedResult(fmt.Sprintf("已移除场景 %d（后续场景编号保持不变）", change.TargetSceneNumber))

	default:
		return scenes, warningResult(fmt.Sprintf("未知的场景变更动作 %q，保留原集合", change.Action))
	}
}

// appendScene 在末尾添加场景，编号为当前最大编号加1
func (s *SceneService) appendScene(scenes []models.Scene, change *models.SceneChange) ([]models.Scene, PatchResult) {
	newScenes := change.NewScenes
	if len(newScenes) == 0 && change.NewScene != nil {
		newScenes = []models.Scene{*change.NewScene}
	}
	if len(newScenes) == 0 {
		return scenes, warningResult("add缺少场景载荷，保留原集合")
	}

	maxNumber := 0
	for _, scene := range scenes {
		if scene.SceneNumber > maxNumber {
			maxNumber = scene.SceneNumber
		}
	}

	updated := make([]models.Scene, 0, len(scenes)+len(newScenes))
	updated = append(updated, scenes...)
	for i, scene := range newScenes {
		scene.SceneNumber = maxNumber + i + 1
		updated = append(updated, scene)
	}

	return updated, appliedResult(fmt.Sprintf("已在末尾添加 %d 个场景", len(newScenes)))
}

// insertBetween 在锚点场景之后插入若干新场景并重新编号
// 锚点不存在时退化为末尾追加（既定回退行为，不算错误）
// 后置条件：编号恰为1..N连续递增，未受影响场景的相对顺序保持不变
func (s *SceneService) insertBetween(scenes []models.Scene, change *models.SceneChange) ([]models.Scene, PatchResult) {
	newScenes := change.NewScenes
	if len(newScenes) == 0 && change.NewScene != nil {
		newScenes = []models.Scene{*change.NewScene}
	}
	if len(newScenes) == 0 {
		return scenes, warningResult("insert_between缺少场景载荷，保留原集合")
	}

	count := change.NumScenesToInsert
	if count <= 0 || count > len(newScenes) {
		count = len(newScenes)
	}
	newScenes = newScenes[:count]

	anchor := change.InsertAfterScene
	anchorIdx := findSceneIndex(scenes, anchor)
	if anchorIdx < 0 {
		s.logger.Warn("insert_between锚点场景不存在，退化为末尾追加", map[string]interface{}{
			"anchor": anchor,
		})
		appendChange := &models.SceneChange{
			Action:    models.ActionAdd,
			NewScenes: newScenes,
		}
		return s.appendScene(scenes, appendChange)
	}

	// 新场景依次取锚点之后的连续编号
	inserted := make([]models.Scene, count)
	for i := range newScenes {
		inserted[i] = newScenes[i]
		inserted[i].SceneNumber = anchor + i + 1
	}

	// 锚点之后的既有场景整体后移count个编号
	updated := make([]models.Scene, 0, len(scenes)+count)
	for _, scene := range scenes {
		shifted := scene
		if scene.SceneNumber > anchor {
			shifted.SceneNumber = scene.SceneNumber + count
		}
		updated = append(updated, shifted)
	}

	updated = append(updated, inserted...)
	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].SceneNumber < updated[j].SceneNumber
	})

	return updated, appliedResult(fmt.Sprintf("已在场景 %d 之后插入 %d 个场景并重新编号", anchor, count))
}

// findSceneIndex 按编号查找场景索引
func findSceneIndex(scenes []models.Scene, number int) int {
	for i, scene := range scenes {
		if scene.SceneNumber == number {
			return i
		}
	}
	return -1
}
