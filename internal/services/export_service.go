// internal/services/export_service.go
package services

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/errors"
	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/storage"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

// ExportService 把文档导出为带时间戳的JSON加Markdown产物对
// 每次修订生成一对新文件，旧产物从不被覆盖，历史按构造只增不改
type ExportService struct {
	storage *storage.FileStorage
	logger  *utils.Logger
	metrics *utils.RevisionMetrics
}

// NewExportService 创建导出服务
func NewExportService(fs *storage.FileStorage) *ExportService {
	return &ExportService{
		storage: fs,
		logger:  utils.GetLogger(),
		metrics: utils.NewRevisionMetrics(),
	}
}

// ExportDocument 导出文档，返回新产物对
func (s *ExportService) ExportDocument(doc *models.NarrativeDocument) (*models.ExportPair, error) {
	if doc == nil || doc.ID == "" {
		return nil, errors.NewValidationError("文档或文档ID为空，无法导出", nil)
	}

	timestamp := time.Now().Format("20060102_150405")
	dir := exportDir(doc.ID)
	jsonName := fmt.Sprintf("saga_%s.json", timestamp)
	mdName := fmt.Sprintf("saga_%s.md", timestamp)

	jsonContent, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.NewProcessingError("序列化导出JSON失败", err)
	}

	mdContent := RenderMarkdown(doc)

	// SaveNewTextFile拒绝覆盖，保证历史产物不可变
	if err := s.storage.SaveNewTextFile(dir, jsonName, jsonContent); err != nil {
		return nil, errors.NewProcessingError("写入JSON产物失败", err)
	}
	if err := s.storage.SaveNewTextFile(dir, mdName, []byte(mdContent)); err != nil {
		return nil, errors.NewProcessingError("写入Markdown产物失败", err)
	}

	now := time.Now()
	pair := &models.ExportPair{
		JSON: models.ExportArtifact{
			DocumentID:  doc.ID,
			Format:      "json",
			FilePath:    filepath.Join(dir, jsonName),
			FileSize:    int64(len(jsonContent)),
			GeneratedAt: now,
		},
		Markdown: models.ExportArtifact{
			DocumentID:  doc.ID,
			Format:      "markdown",
			FilePath:    filepath.Join(dir, mdName),
			FileSize:    int64(len(mdContent)),
			GeneratedAt: now,
		},
	}

	s.metrics.RecordExport(doc.ID, pair.JSON.FileSize+pair.Markdown.FileSize)
	s.logger.Info("文档已导出", map[string]interface{}{
		"document_id": doc.ID,
		"json":        pair.JSON.FilePath,
		"markdown":    pair.Markdown.FilePath,
	})

	return pair, nil
}

// ListExports 按时间顺序列出文档的全部历史产物文件名
func (s *ExportService) ListExports(documentID string) ([]string, error) {
	if documentID == "" {
		return nil, errors.NewValidationError("文档ID不能为空", nil)
	}

	files, err := s.storage.ListFiles(exportDir(documentID), "")
	if err != nil {
		return nil, errors.NewProcessingError("列出导出历史失败", err)
	}

	sort.Strings(files)
	return files, nil
}

// LoadExport 读取一个历史产物的内容
func (s *ExportService) LoadExport(documentID, filename string) ([]byte, error) {
	if documentID == "" || filename == "" {
		return nil, errors.NewValidationError("文档ID和文件名不能为空", nil)
	}

	content, err := s.storage.LoadTextFile(exportDir(documentID), filename)
	if err != nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("导出产物 %s 不存在", filename), err)
	}

	return content, nil
}

// LoadLatestDocument 从最新的JSON产物恢复文档
// 修订会话以导出产物为输入来源时使用
func (s *ExportService) LoadLatestDocument(documentID string) (*models.NarrativeDocument, error) {
	files, err := s.ListExports(documentID)
	if err != nil {
		return nil, err
	}

	var latest string
	for i := len(files) - 1; i >= 0; i-- {
		if strings.HasSuffix(files[i], ".json") {
			latest = files[i]
			break
		}
	}
	if latest == "" {
		return nil, errors.NewNotFoundError(fmt.Sprintf("文档 %s 没有JSON导出产物", documentID), nil)
	}

	content, err := s.LoadExport(documentID, latest)
	if err != nil {
		return nil, err
	}

	doc := &models.NarrativeDocument{}
	if err := json.Unmarshal(content, doc); err != nil {
		return nil, errors.NewProcessingError("解析导出产物失败", err)
	}

	doc.Pending = nil
	doc.ScenePolicy.AllowIncrease = false
	return doc, nil
}

func exportDir(documentID string) string {
	return filepath.Join("exports", documentID)
}

// RenderMarkdown 把文档渲染为可读的Markdown用户视图
func RenderMarkdown(doc *models.NarrativeDocument) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	if doc.Genre != "" || doc.Tone != "" {
		fmt.Fprintf(&b, "**类型**: %s  |  **基调**: %s\n\n", doc.Genre, doc.Tone)
	}
	if doc.LogLine != "" {
		fmt.Fprintf(&b, "> %s\n\n", doc.LogLine)
	}

	if doc.Draft != "" {
		b.WriteString("## 故事草稿\n\n")
		b.WriteString(doc.Draft)
		b.WriteString("\n\n")
	}

	if len(doc.Characters) > 0 {
		b.WriteString("## 角色\n\n")
		for _, c := range doc.Characters {
			fmt.Fprintf(&b, "### %s\n\n", c.Name)
			writeField(&b, "类型", c.PersonaType)
			writeField(&b, "外貌", c.Appearance)
			writeField(&b, "描述", c.Description)
			writeField(&b, "性格", c.Personality)
			writeField(&b, "背景", c.Background)
			b.WriteString("\n")
		}
	}

	if len(doc.Locations) > 0 {
		b.WriteString("## 地点\n\n")
		for _, l := range doc.Locations {
			fmt.Fprintf(&b, "### %s\n\n", l.Name)
			writeField(&b, "描述", l.Description)
			writeField(&b, "氛围", l.Atmosphere)
			b.WriteString("\n")
		}
	}

	if len(doc.Scenes) > 0 {
		b.WriteString("## 场景\n\n")
		for _, scene := range doc.Scenes {
			fmt.Fprintf(&b, "### 场景 %d\n\n", scene.SceneNumber)
			writeField(&b, "环境", scene.EnvironmentalContext)
			writeField(&b, "动作", scene.SubjectAction)
			writeField(&b, "镜头", strings.TrimSpace(strings.Join(
				nonEmpty(scene.ShotType, scene.CameraAngle, scene.CameraMovement, scene.CameraPerspective), " / ")))
			for _, line := range scene.DialogueLines {
				fmt.Fprintf(&b, "- **%s**: %s\n", line.CharacterName, line.Line)
			}
			b.WriteString("\n")
		}
	}

	if len(doc.DialogueLines) > 0 {
		b.WriteString("## 台词\n\n")
		for _, line := range doc.DialogueLines {
			fmt.Fprintf(&b, "- **%s** (场景 %d): %s\n", line.CharacterName, line.SceneNumber, line.Line)
		}
		b.WriteString("\n")
	}

	if len(doc.VisualLookbook) > 0 {
		b.WriteString("## 视觉手册\n\n")
		keys := make([]string, 0, len(doc.VisualLookbook))
		for k := range doc.VisualLookbook {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- **%s**: %v\n", k, doc.VisualLookbook[k])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "---\n\n*导出于 %s*\n", time.Now().Format("2006-01-02 15:04:05"))

	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value != "" {
		fmt.Fprintf(b, "- **%s**: %s\n", label, value)
	}
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
