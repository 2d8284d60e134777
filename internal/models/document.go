// internal/models/document.go
package models

import (
	"strings"
	"time"
)

// ComponentName 表示文档中一个可编辑的顶层组件
type ComponentName string

const (
	ComponentDraft          ComponentName = "draft"
	ComponentCharacters     ComponentName = "characters"
	ComponentDialogue       ComponentName = "dialogue"
	ComponentLocations      ComponentName = "locations"
	ComponentVisualLookbook ComponentName = "visual_lookbook"
	ComponentScenes         ComponentName = "scenes"
)

// AllComponents 按固定顺序列出全部组件名称
func AllComponents() []ComponentName {
	return []ComponentName{
		ComponentDraft,
		ComponentCharacters,
		ComponentDialogue,
		ComponentLocations,
		ComponentVisualLookbook,
		ComponentScenes,
	}
}

// IsValidComponent 检查组件名称是否有效
func IsValidComponent(name ComponentName) bool {
	for _, c := range AllComponents() {
		if c == name {
			return true
		}
	}
	return false
}

// Character 表示文档中的一个角色
// 字段为封闭schema，额外的前向兼容数据放入Extra扩展映射
type Character struct {
	Name        string            `json:"name"`
	PersonaType string            `json:"persona_type,omitempty"`
	Appearance  string            `json:"appearance,omitempty"`
	Description string            `json:"description,omitempty"`
	Personality string            `json:"personality,omitempty"`
	Background  string            `json:"background,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Location 表示文档中的一个地点
type Location struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Atmosphere  string            `json:"atmosphere,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// DialogueLine 表示一条台词，按角色名归属到某个场景
type DialogueLine struct {
	CharacterName string `json:"character_name"`
	SceneNumber   int    `json:"scene_number"`
	Line          string `json:"line"`
}

// Scene 表示一个编号场景，场景编号从1开始连续递增
type Scene struct {
	SceneNumber          int               `json:"scene_number"`
	EnvironmentalContext string            `json:"environmental_context,omitempty"`
	SubjectAction        string            `json:"subject_action,omitempty"`
	ShotType             string            `json:"shot_type,omitempty"`
	CameraAngle          string            `json:"camera_angle,omitempty"`
	CameraMovement       string            `json:"camera_movement,omitempty"`
	CameraPerspective    string            `json:"camera_perspective,omitempty"`
	DialogueLines        []DialogueLine    `json:"dialogue_lines,omitempty"`
	Extra                map[string]string `json:"extra,omitempty"`
}

// ScenePolicy 记录场景数量策略
// AllowIncrease 是瞬态标志：每次修订前根据反馈关键词设置，修订后清除，不参与持久化
type ScenePolicy struct {
	OriginalCount int  `json:"original_count"`
	AllowIncrease bool `json:"-"`
}

// PendingFeedback 是一次修订期间的瞬态反馈字段
// 在调用组件补丁步骤之前创建，补丁完成后立即删除，从不参与持久化
type PendingFeedback struct {
	Component ComponentName `json:"-"`
	Feedback  string        `json:"-"`
}

// NarrativeDocument 表示一份完整的叙事文档（剧本或游戏传奇的用户视图）
// 每个修订会话从导出产物加载一次，在内存中最多接受一次变更，再导出为新产物
type NarrativeDocument struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Genre   string `json:"genre,omitempty"`
	Tone    string `json:"tone,omitempty"`
	LogLine string `json:"log_line,omitempty"`
	Draft   string `json:"draft,omitempty"`

	Characters     []Character            `json:"characters"`
	Locations      []Location             `json:"locations"`
	DialogueLines  []DialogueLine         `json:"dialogue_lines"`
	Scenes         []Scene                `json:"scenes"`
	VisualLookbook map[string]interface{} `json:"visual_lookbook,omitempty"`

	ScenePolicy ScenePolicy `json:"scene_policy"`

	// 瞬态反馈，仅在单次修订的补丁步骤期间存在
	Pending *PendingFeedback `json:"-"`

	CreatedAt   time.Time `json:"created_at,omitempty"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
}

// FindCharacter 按名称（不区分大小写）查找角色，返回索引，未找到返回-1
func (d *NarrativeDocument) FindCharacter(name string) int {
	for i, c := range d.Characters {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// FindLocation 按名称（不区分大小写）查找地点，返回索引，未找到返回-1
func (d *NarrativeDocument) FindLocation(name string) int {
	for i, l := range d.Locations {
		if strings.EqualFold(l.Name, name) {
			return i
		}
	}
	return -1
}

// FindScene 按场景编号查找场景，返回索引，未找到返回-1
func (d *NarrativeDocument) FindScene(number int) int {
	for i, s := range d.Scenes {
		if s.SceneNumber == number {
			return i
		}
	}
	return -1
}

// Clone 返回文档的深拷贝
// 修订装配器依赖该快照实现"恢复所有非目标字段"的保证
func (d *NarrativeDocument) Clone() *NarrativeDocument {
	if d == nil {
		return nil
	}

	clone := *d

	clone.Characters = cloneCharacters(d.Characters)
	clone.Locations = cloneLocations(d.Locations)
	clone.DialogueLines = cloneDialogueLines(d.DialogueLines)
	clone.Scenes = cloneScenes(d.Scenes)
	clone.VisualLookbook = cloneValueMap(d.VisualLookbook)
	clone.Pending = nil

	return &clone
}

func cloneCharacters(src []Character) []Character {
	if src == nil {
		return nil
	}
	out := make([]Character, len(src))
	for i, c := range src {
		out[i] = c
		out[i].Extra = cloneStringMap(c.Extra)
	}
	return out
}

func cloneLocations(src []Location) []Location {
	if src == nil {
		return nil
	}
	out := make([]Location, len(src))
	for i, l := range src {
		out[i] = l
		out[i].Extra = cloneStringMap(l.Extra)
	}
	return out
}

func cloneDialogueLines(src []DialogueLine) []DialogueLine {
	if src == nil {
		return nil
	}
	out := make([]DialogueLine, len(src))
	copy(out, src)
	return out
}

func cloneScenes(src []Scene) []Scene {
	if src == nil {
		return nil
	}
	out := make([]Scene, len(src))
	for i, s := range src {
		out[i] = s
		out[i].DialogueLines = cloneDialogueLines(s.DialogueLines)
		out[i].Extra = cloneStringMap(s.Extra)
	}
	return out
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func cloneValueMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return cloneValueMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// DocumentSummary 提供给分类器的文档概要
type DocumentSummary struct {
	Title          string   `json:"title"`
	Genre          string   `json:"genre,omitempty"`
	Tone           string   `json:"tone,omitempty"`
	CharacterNames []string `json:"character_names"`
	LocationNames  []string `json:"location_names"`
	SceneCount     int      `json:"scene_count"`
	DialogueCount  int      `json:"dialogue_count"`
}

// Summary 生成文档概要
func (d *NarrativeDocument) Summary() DocumentSummary {
	summary := DocumentSummary{
		Title:         d.Title,
		Genre:         d.Genre,
		Tone:          d.Tone,
		SceneCount:    len(d.Scenes),
		DialogueCount: len(d.DialogueLines),
	}
	for _, c := range d.Characters {
		summary.CharacterNames = append(summary.CharacterNames, c.Name)
	}
	for _, l := range d.Locations {
		summary.LocationNames = append(summary.LocationNames, l.Name)
	}
	return summary
}
