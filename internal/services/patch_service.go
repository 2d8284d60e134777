// internal/services/patch_service.go
package services

import (
	"fmt"
	"strings"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// PatchService 实现针对单个实体集合的通用合并原语
// 每个操作都是纯函数：输入集合不被修改，返回新集合
// 除目标实体外的所有实体保持字段值和相对顺序完全不变
type PatchService struct {
	logger *utils.Logger
}

// PatchResult 单次补丁的输出
type PatchResult struct {
	Outcome models.PatchOutcome
	Message string
	Rename  *models.RenameEvent
}

// NewPatchService 创建补丁服务
func NewPatchService() *PatchService {
	return &PatchService{
		logger: utils.GetLogger(),
	}
}

// PatchCharacters 对角色集合应用一个变更提案
// modify做整体替换而非字段级合并；名称变化时上报重命名事件供传播层使用
func (s *PatchService) PatchCharacters(characters []models.Character, change *models.CharacterChange) ([]models.Character, PatchResult) {
	if change == nil {
		return characters, warningResult("角色变更提案为空，保留原集合")
	}

	switch change.Action {
	case models.ActionAdd:
		if change.NewCharacter == nil {
			return characters, warningResult("add缺少角色载荷，保留原集合")
		}
		updated := make([]models.Character, 0, len(characters)+1)
		updated = append(updated, characters...)
		updated = append(updated, *change.NewCharacter)
		return updated, appliedResult(fmt.Sprintf("已添加角色 %q", change.NewCharacter.Name))

	case models.ActionModify:
		if change.NewCharacter == nil {
			return characters, warningResult("modify缺少角色载荷，保留原集合")
		}
		idx := findCharacterIndex(characters, change.TargetName)
		if idx < 0 {
			return characters, warningResult(fmt.Sprintf("未找到目标角色 %q，保留原集合", change.TargetName))
		}

		oldName := characters[idx].Name
		updated := make([]models.Character, len(characters))
		copy(updated, characters)
		updated[idx] = *change.NewCharacter

		result := appliedResult(fmt.Sprintf("已修改角色 %q", oldName))
		if oldName != change.NewCharacter.Name {
			result.Rename = &models.RenameEvent{OldName: oldName, NewName: change.NewCharacter.Name}
		}
		return updated, result

	case models.ActionRemove:
		idx := findCharacterIndex(characters, change.TargetName)
		if idx < 0 {
			return characters, warningResult(fmt.Sprintf("未找到目标角色 %q，保留原集合", change.TargetName))
		}
		updated := make([]models.Character, 0, len(characters)-1)
		updated = append(updated, characters[:idx]...)
		updated = append(updated, characters[idx+1:]...)
		return updated, appliedResult(fmt.Sprintf("已移除角色 %q", characters[idx].Name))

	default:
		return characters, warningResult(fmt.Sprintf("未知的角色变更动作 %q，保留原集合", change.Action))
	}
}

// PatchLocations 对地点集合应用一个变更提案
func (s *PatchService) PatchLocations(locations []models.Location, change *models.LocationChange) ([]models.Location, PatchResult) {
	if change == nil {
		return locations, warningResult("地点变更提案为空，保留原集合")
	}

	switch change.Action {
	case models.ActionAdd:
		if change.NewLocation == nil {
			return locations, warningResult("add缺少地点载荷，保留原集合")
		}
		updated := make([]models.Location, 0, len(locations)+1)
		updated = append(updated, locations...)
		updated = append(updated, *change.NewLocation)
		return updated, appliedResult(fmt.Sprintf("已添加地点 %q", change.NewLocation.Name))

	case models.ActionModify:
		if change.NewLocation == nil {
			return locations, warningResult("modify缺少地点载荷，保留原集合")
		}
		idx := findLocationIndex(locations, change.TargetName)
		if idx < 0 {
			return locations, warningResult(fmt.Sprintf("未找到目标地点 %q，保留原集合", change.TargetName))
		}

		oldName := locations[idx].Name
		updated := make([]models.Location, len(locations))
		copy(updated, locations)
		updated[idx] = *change.NewLocation

		result := appliedResult(fmt.Sprintf("已修改地点 %q", oldName))
		if oldName != change.NewLocation.Name {
			result.Rename = &models.RenameEvent{OldName: oldName, NewName: change.NewLocation.Name}
		}
		return updated, result

	case models.ActionRemove:
		idx := findLocationIndex(locations, change.TargetName)
		if idx < 0 {
			return locations, warningResult(fmt.Sprintf("未找到目标地点 %q，保留原集合", change.TargetName))
		}
		updated := make([]models.Location, 0, len(locations)-1)
		updated = append(updated, locations[:idx]...)
		updated = append(updated, locations[idx+1:]...)
		return updated, appliedResult(fmt.Sprintf("已移除地点 %q", locations[idx].Name))

	default:
		return locations, warningResult(fmt.Sprintf("未知的地点变更动作 %q，保留原集合", change.Action))
	}
}

// PatchDialogueLines 对台词集合应用一个变更提案
// 台词通过1-based序号或角色名（首个不区分大小写匹配）定位
// modify只替换台词文本，角色归属和场景编号保持不变
func (s *PatchService) PatchDialogueLines(lines []models.DialogueLine, change *models.DialogueChange) ([]models.DialogueLine, PatchResult) {
	if change == nil {
		return lines, warningResult("台词变更提案为空，保留原集合")
	}

	switch change.Action {
	case models.ActionAdd:
		if change.NewDialogue == nil {
			return lines, warningResult("add缺少台词载荷，保留原集合")
		}
		updated := make([]models.DialogueLine, 0, len(lines)+1)
		updated = append(updated, lines...)
		updated = append(updated, *change.NewDialogue)
		return updated, appliedResult(fmt.Sprintf("已添加 %q 的台词", change.NewDialogue.CharacterName))

	case models.ActionModify:
		if change.ModifiedLine == "" {
			return lines, warningResult("modify缺少替换文本，保留原集合")
		}
		idx := findDialogueIndex(lines, change.Identification)
		if idx < 0 {
			return lines, warningResult("未找到目标台词，保留原集合")
		}
		updated := make([]models.DialogueLine, len(lines))
		copy(updated, lines)
		updated[idx].Line = change.ModifiedLine
		return updated, appliedResult(fmt.Sprintf("已修改 %q 的台词", updated[idx].CharacterName))

	case models.ActionRemove:
		idx := findDialogueIndex(lines, change.Identification)
		if idx < 0 {
			return lines, warningResult("未找到目标台词，保留原集合")
		}
		removed := lines[idx]
		updated := make([]models.DialogueLine, 0, len(lines)-1)
		updated = append(updated, lines[:idx]...)
		updated = append(updated, lines[idx+1:]...)
		return updated, appliedResult(fmt.Sprintf("已移除 %q 的台词", removed.CharacterName))

	default:
		return lines, warningResult(fmt.Sprintf("未知的台词变更动作 %q，保留原集合", change.Action))
	}
}

// findCharacterIndex 按名称不区分大小写查找角色索引
func findCharacterIndex(characters []models.Character, name string) int {
	for i, c := range characters {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// findLocationIndex 按名称不区分大小写查找地点索引
func findLocationIndex(locations []models.Location, name string) int {
	for i, l := range locations {
		if strings.EqualFold(l.Name, name) {
			return i
		}
	}
	return -1
}

// findDialogueIndex 通过序号或角色名定位台词
// 序号优先：有效的1-based序号直接换算，否则按角色名取首个不区分大小写匹配
func findDialogueIndex(lines []models.DialogueLine, id *models.DialogueIdentification) int {
	if id == nil {
		return -1
	}

	if id.TargetIndex >= 1 && id.TargetIndex <= len(lines) {
		return id.TargetIndex - 1
	}

	if id.TargetCharacter != "" {
		for i, line := range lines {
			if strings.EqualFold(line.CharacterName, id.TargetCharacter) {
				return i
			}
		}
	}

	return -1
}

func appliedResult(message string) PatchResult {
	return PatchResult{Outcome: models.OutcomeApplied, Message: message}
}

func warningResult(message string) PatchResult {
	utils.GetLogger().Warn(message, nil)
	return PatchResult{Outcome: models.OutcomeWarning, Message: message}
}
