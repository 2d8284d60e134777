// internal/services/export_service_test.go
package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExportService(t *testing.T) *ExportService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewExportService(fs)
}

func exportDocumentFixture() *models.NarrativeDocument {
	return &models.NarrativeDocument{
		ID:      "export_test",
		Title:   "Midnight Errand",
		Genre:   "noir",
		Tone:    "tense",
		LogLine: "A courier takes one last job.",
		Draft:   "Elena Cross steps into the Rusty Cafe.",
		Characters: []models.Character{
			{Name: "Elena Cross", PersonaType: "protagonist", Description: "A courier."},
		},
		Locations: []models.Location{
			{Name: "Rusty Cafe", Description: "All-night cafe.", Atmosphere: "smoky"},
		},
		DialogueLines: []models.DialogueLine{
			{CharacterName: "Elena Cross", SceneNumber: 1, Line: "You said midnight."},
		},
		Scenes: []models.Scene{
			{
				SceneNumber:          1,
				EnvironmentalContext: "Inside the Rusty Cafe.",
				SubjectAction:        "Elena slides into the booth.",
				ShotType:             "medium",
				CameraAngle:          "eye-level",
				DialogueLines: []models.DialogueLine{
					{CharacterName: "Elena Cross", SceneNumber: 1, Line: "It's cold."},
				},
			},
		},
		VisualLookbook: map[string]interface{}{
			"palette":  "sodium orange",
			"lighting": "hard rim light",
		},
	}
}

func TestExportDocument_ProducesArtifactPair(t *testing.T) {
	svc := newTestExportService(t)
	doc := exportDocumentFixture()

	pair, err := svc.ExportDocument(doc)
	require.NoError(t, err)
	require.NotNil(t, pair)

	assert.Equal(t, "json", pair.JSON.Format)
	assert.Equal(t, "markdown", pair.Markdown.Format)
	assert.True(t, strings.HasSuffix(pair.JSON.FilePath, ".json"))
	assert.True(t, strings.HasSuffix(pair.Markdown.FilePath, ".md"))
	assert.Positive(t, pair.JSON.FileSize)
	assert.Positive(t, pair.Markdown.FileSize)

	// 两个产物都已落盘
	files, err := svc.ListExports(doc.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
}

func TestExportDocument_Validation(t *testing.T) {
	svc := newTestExportService(t)

	_, err := svc.ExportDocument(nil)
	assert.Error(t, err)

	_, err = svc.ExportDocument(&models.NarrativeDocument{Title: "no id"})
	assert.Error(t, err)
}

func TestLoadExportRoundTrip(t *testing.T) {
	svc := newTestExportService(t)
	doc := exportDocumentFixture()

	pair, err := svc.ExportDocument(doc)
	require.NoError(t, err)

	files, err := svc.ListExports(doc.ID)
	require.NoError(t, err)

	var jsonName string
	for _, f := range files {
		if strings.HasSuffix(f, ".json") {
			jsonName = f
		}
	}
	require.NotEmpty(t, jsonName)

	content, err := svc.LoadExport(doc.ID, jsonName)
	require.NoError(t, err)
	assert.Equal(t, pair.JSON.FileSize, int64(len(content)))

	var loaded models.NarrativeDocument
	require.NoError(t, json.Unmarshal(content, &loaded))
	assert.Equal(t, doc.Title, loaded.Title)
	assert.Equal(t, doc.Draft, loaded.Draft)
	require.Len(t, loaded.Characters, 1)
	assert.Equal(t, "Elena Cross", loaded.Characters[0].Name)
}

func TestLoadLatestDocument(t *testing.T) {
	svc := newTestExportService(t)
	doc := exportDocumentFixture()

	_, err := svc.ExportDocument(doc)
	require.NoError(t, err)

	loaded, err := svc.LoadLatestDocument(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, loaded.ID)
	assert.Equal(t, doc.Title, loaded.Title)
	// 瞬态字段加载后必为零值
	assert.Nil(t, loaded.Pending)
	assert.False(t, loaded.ScenePolicy.AllowIncrease)
}

func TestLoadLatestDocument_NoExports(t *testing.T) {
	svc := newTestExportService(t)

	_, err := svc.LoadLatestDocument("never_exported")
	assert.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	doc := exportDocumentFixture()

	md := RenderMarkdown(doc)

	assert.Contains(t, md, "# Midnight Errand")
	assert.Contains(t, md, "## 故事草稿")
	assert.Contains(t, md, "## 角色")
	assert.Contains(t, md, "### Elena Cross")
	assert.Contains(t, md, "## 地点")
	assert.Contains(t, md, "### Rusty Cafe")
	assert.Contains(t, md, "## 场景")
	assert.Contains(t, md, "### 场景 1")
	assert.Contains(t, md, "medium / eye-level")
	assert.Contains(t, md, "**Elena Cross**: It's cold.")
	assert.Contains(t, md, "## 台词")
	assert.Contains(t, md, "## 视觉手册")
	// 视觉手册条目按键排序
	lightingIdx := strings.Index(md, "lighting")
	paletteIdx := strings.Index(md, "palette")
	assert.Greater(t, paletteIdx, lightingIdx)
}

func TestRenderMarkdown_SkipsEmptySections(t *testing.T) {
	md := RenderMarkdown(&models.NarrativeDocument{Title: "Bare"})

	assert.Contains(t, md, "# Bare")
	assert.NotContains(t, md, "## 角色")
	assert.NotContains(t, md, "## 场景")
	assert.NotContains(t, md, "## 视觉手册")
}
