// internal/services/document_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocumentService(t *testing.T) *DocumentService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewDocumentService(fs)
}

func TestCreateDocument_GeneratesIDAndTimestamps(t *testing.T) {
	svc := newTestDocumentService(t)

	doc := &models.NarrativeDocument{
		Title:  "Midnight Errand",
		Scenes: []models.Scene{{SceneNumber: 1}, {SceneNumber: 2}},
	}

	err := svc.CreateDocument(doc)
	require.NoError(t, err)

	assert.NotEmpty(t, doc.ID)
	assert.Contains(t, doc.ID, "midnight_errand")
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.LastUpdated.IsZero())
	assert.Equal(t, 2, doc.ScenePolicy.OriginalCount)
}

func TestCreateDocument_Validation(t *testing.T) {
	svc := newTestDocumentService(t)

	assert.Error(t, svc.CreateDocument(nil))
	assert.Error(t, svc.CreateDocument(&models.NarrativeDocument{}))
}

func TestCreateDocument_ConflictOnExistingID(t *testing.T) {
	svc := newTestDocumentService(t)

	doc := &models.NarrativeDocument{ID: "fixed_id", Title: "First"}
	require.NoError(t, svc.CreateDocument(doc))

	err := svc.CreateDocument(&models.NarrativeDocument{ID: "fixed_id", Title: "Second"})
	require.Error(t, err)
}

func TestLoadDocument_RoundTripClearsTransients(t *testing.T) {
	svc := newTestDocumentService(t)

	doc := &models.NarrativeDocument{
		ID:    "load_test",
		Title: "Midnight Errand",
		Draft: "Elena waits.",
		Characters: []models.Character{
			{Name: "Elena Cross", Extra: map[string]string{"age": "31"}},
		},
	}
	require.NoError(t, svc.CreateDocument(doc))

	loaded, err := svc.LoadDocument("load_test")
	require.NoError(t, err)

	assert.Equal(t, "Midnight Errand", loaded.Title)
	assert.Equal(t, "Elena waits.", loaded.Draft)
	require.Len(t, loaded.Characters, 1)
	// 封闭schema之外的扩展数据在持久化中保留
	assert.Equal(t, "31", loaded.Characters[0].Extra["age"])
	// 瞬态字段加载后必为零值
	assert.Nil(t, loaded.Pending)
	assert.False(t, loaded.ScenePolicy.AllowIncrease)
}

func TestLoadDocument_NotFound(t *testing.T) {
	svc := newTestDocumentService(t)

	_, err := svc.LoadDocument("missing")
	assert.Error(t, err)

	_, err = svc.LoadDocument("")
	assert.Error(t, err)
}

func TestSaveDocument_RefreshesLastUpdated(t *testing.T) {
	svc := newTestDocumentService(t)

	doc := &models.NarrativeDocument{ID: "save_test", Title: "Saga"}
	require.NoError(t, svc.CreateDocument(doc))

	stale := time.Now().Add(-time.Hour)
	doc.LastUpdated = stale

	require.NoError(t, svc.SaveDocument(doc))
	assert.True(t, doc.LastUpdated.After(stale))
}

func TestListDocuments(t *testing.T) {
	svc := newTestDocumentService(t)

	// 空存储：无文档不算错误
	summaries, err := svc.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, summaries)

	require.NoError(t, svc.CreateDocument(&models.NarrativeDocument{
		ID:    "doc_a",
		Title: "First Saga",
		Characters: []models.Character{
			{Name: "Elena Cross"},
		},
	}))
	require.NoError(t, svc.CreateDocument(&models.NarrativeDocument{
		ID:    "doc_b",
		Title: "Second Saga",
	}))

	summaries, err = svc.ListDocuments()
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	titles := []string{summaries[0].Title, summaries[1].Title}
	assert.ElementsMatch(t, []string{"First Saga", "Second Saga"}, titles)
}

func TestDeleteDocument(t *testing.T) {
	svc := newTestDocumentService(t)

	require.NoError(t, svc.CreateDocument(&models.NarrativeDocument{ID: "del_test", Title: "Gone"}))
	require.NoError(t, svc.DeleteDocument("del_test"))

	_, err := svc.LoadDocument("del_test")
	assert.Error(t, err)

	// 再删一次：未找到
	assert.Error(t, svc.DeleteDocument("del_test"))
}
