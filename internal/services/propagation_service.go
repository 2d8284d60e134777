// internal/services/propagation_service.go
package services

import (
	"regexp"
	"strings"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// PropagationService 在重命名之后重写文档中引用旧标识的其他字段
//
// 角色与地点的传播覆盖策略不同：
//   - 角色：台词归属做精确匹配全量替换；散文字段（场景描述、草稿）
//     每个字段只替换第一处出现，全名匹配优先于名字首词匹配
//   - 地点：场景环境描述与草稿做不区分大小写的全量替换
//
// 传播失败只记日志，从不回滚已成功的实体补丁
type PropagationService struct {
	logger *utils.Logger
}

// NewPropagationService 创建传播服务
func NewPropagationService() *PropagationService {
	return &PropagationService{
		logger: utils.GetLogger(),
	}
}

// PropagateCharacterRename 把角色重命名传播到台词、场景散文和草稿
// 输入文档不被修改，返回带报告的新文档
func (s *PropagationService) PropagateCharacterRename(doc *models.NarrativeDocument, rename models.RenameEvent) (*models.NarrativeDocument, models.PropagationReport) {
	report := models.PropagationReport{}
	if doc == nil || rename.OldName == "" || rename.OldName == rename.NewName {
		return doc, report
	}

	updated := doc.Clone()

	// 顶层台词归属：精确匹配，全量替换
	for i := range updated.DialogueLines {
		if updated.DialogueLines[i].CharacterName == rename.OldName {
			updated.DialogueLines[i].CharacterName = rename.NewName
			report.DialogueLines++
		}
	}

	// 场景内嵌台词归属：同样精确匹配全量替换
	for i := range updated.Scenes {
		for j := range updated.Scenes[i].DialogueLines {
			if updated.Scenes[i].DialogueLines[j].CharacterName == rename.OldName {
				updated.Scenes[i].DialogueLines[j].CharacterName = rename.NewName
				report.SceneDialogues++
			}
		}
	}

	// 场景散文字段：每个字段只替换第一处出现
	for i := range updated.Scenes {
		if replaced, ok := replaceNameOnce(updated.Scenes[i].SubjectAction, rename.OldName, rename.NewName); ok {
			updated.Scenes[i].SubjectAction = replaced
			report.SceneFields++
		}
		if replaced, ok := replaceNameOnce(updated.Scenes[i].EnvironmentalContext, rename.OldName, rename.NewName); ok {
			updated.Scenes[i].EnvironmentalContext = replaced
			report.SceneFields++
		}
	}

	// 草稿全文：同样只替换第一处出现
	if replaced, ok := replaceNameOnce(updated.Draft, rename.OldName, rename.NewName); ok {
		updated.Draft = replaced
		report.DraftTouched++
	}

	s.logger.Info("角色重命名传播完成", map[string]interface{}{
		"old_name":        rename.OldName,
		"new_name":        rename.NewName,
		"dialogue_lines":  report.DialogueLines,
		"scene_dialogues": report.SceneDialogues,
		"scene_fields":    report.SceneFields,
		"draft_touched":   report.DraftTouched,
	})

	return updated, report
}

// PropagateLocationRename 把地点重命名传播到场景环境描述和草稿
// 不区分大小写，全量替换
func (s *PropagationService) PropagateLocationRename(doc *models.NarrativeDocument, rename models.RenameEvent) (*models.NarrativeDocument, models.PropagationReport) {
	report := models.PropagationReport{}
	if doc == nil || rename.OldName == "" || rename.OldName == rename.NewName {
		return doc, report
	}

	pattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(rename.OldName))
	if err != nil {
		s.logger.Error("地点名称无法编译为匹配模式，跳过传播", map[string]interface{}{
			"old_name": rename.OldName,
			"error":    err.Error(),
		})
		return doc, report
	}

	updated := doc.Clone()

	for i := range updated.Scenes {
		if count := len(pattern.FindAllStringIndex(updated.Scenes[i].EnvironmentalContext, -1)); count > 0 {
			updated.Scenes[i].EnvironmentalContext = pattern.ReplaceAllString(updated.Scenes[i].EnvironmentalContext, rename.NewName)
			report.SceneFields += count
		}
	}

	if count := len(pattern.FindAllStringIndex(updated.Draft, -1)); count > 0 {
		updated.Draft = pattern.ReplaceAllString(updated.Draft, rename.NewName)
		report.DraftTouched += count
	}

	s.logger.Info("地点重命名传播完成", map[string]interface{}{
		"old_name":      rename.OldName,
		"new_name":      rename.NewName,
		"scene_fields":  report.SceneFields,
		"draft_touched": report.DraftTouched,
	})

	return updated, report
}

// replaceNameOnce 在文本中替换旧名称的第一处出现
// 全名命中优先；未命中时按名字首词替换为新名字首词
// 两个分支最多执行其一，返回是否发生了替换
func replaceNameOnce(text, oldName, newName string) (string, bool) {
	if text == "" {
		return text, false
	}

	if strings.Contains(text, oldName) {
		return strings.Replace(text, oldName, newName, 1), true
	}

	oldFirst := firstToken(oldName)
	newFirst := firstToken(newName)
	if oldFirst != "" && newFirst != "" && strings.Contains(text, oldFirst) {
		return strings.Replace(text, oldFirst, newFirst, 1), true
	}

	return text, false
}

// firstToken 返回名称按空白切分后的第一个词
func firstToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
