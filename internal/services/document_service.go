// internal/services/document_service.go
package services

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ArcueHQ/SagaReviserMCP/internal/errors"
	"github.com/ArcueHQ/SagaReviserMCP/internal/models"
	"github.com/ArcueHQ/SagaReviserMCP/internal/storage"
	"github.com/ArcueHQ/SagaReviserMCP/internal/utils"
)

const documentFileName = "document.json"

// DocumentService 管理叙事文档的加载与保存
// 每个文档存放在 documents/<id>/document.json
type DocumentService struct {
	storage *storage.FileStorage
	logger  *utils.Logger
}

// NewDocumentService 创建文档服务
func NewDocumentService(fs *storage.FileStorage) *DocumentService {
	return &DocumentService{
		storage: fs,
		logger:  utils.GetLogger(),
	}
}

// CreateDocument 创建并持久化一份新文档
func (s *DocumentService) CreateDocument(doc *models.NarrativeDocument) error {
	if doc == nil {
		return errors.NewValidationError("文档为空", nil)
	}
	if doc.Title == "" {
		return errors.NewValidationError("文档标题不能为空", nil)
	}

	if doc.ID == "" {
		doc.ID = generateDocumentID(doc.Title)
	}
	if s.storage.FileExists(documentDir(doc.ID), documentFileName) {
		return errors.NewConflictError(fmt.Sprintf("文档 %s 已存在", doc.ID), nil)
	}

	now := time.Now()
	doc.CreatedAt = now
	doc.LastUpdated = now
	doc.ScenePolicy.OriginalCount = len(doc.Scenes)

	return s.SaveDocument(doc)
}

// LoadDocument 按ID加载文档
func (s *DocumentService) LoadDocument(id string) (*models.NarrativeDocument, error) {
	if id == "" {
		return nil, errors.NewValidationError("文档ID不能为空", nil)
	}

	doc := &models.NarrativeDocument{}
	if err := s.storage.LoadJSONFile(documentDir(id), documentFileName, doc); err != nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("加载文档 %s 失败", id), err)
	}

	// 瞬态字段不参与持久化，加载后必为零值
	doc.Pending = nil
	doc.ScenePolicy.AllowIncrease = false

	return doc, nil
}

// SaveDocument 持久化文档并刷新更新时间
func (s *DocumentService) SaveDocument(doc *models.NarrativeDocument) error {
	if doc == nil || doc.ID == "" {
		return errors.NewValidationError("文档或文档ID为空", nil)
	}

	doc.LastUpdated = time.Now()

	if err := s.storage.SaveJSONFile(documentDir(doc.ID), documentFileName, doc); err != nil {
		return errors.NewProcessingError(fmt.Sprintf("保存文档 %s 失败", doc.ID), err)
	}

	s.logger.Debug("文档已保存", map[string]interface{}{
		"document_id": doc.ID,
		"title":       doc.Title,
	})

	return nil
}

// ListDocuments 列出所有文档的概要
func (s *DocumentService) ListDocuments() ([]models.DocumentSummary, error) {
	if !s.storage.DirExists("documents") {
		return nil, nil
	}

	ids, err := s.storage.ListDirs("documents")
	if err != nil {
		return nil, errors.NewProcessingError("列出文档目录失败", err)
	}

	summaries := make([]models.DocumentSummary, 0, len(ids))
	for _, id := range ids {
		doc, err := s.LoadDocument(id)
		if err != nil {
			s.logger.Warn("跳过无法加载的文档", map[string]interface{}{
				"document_id": id,
				"error":       err.Error(),
			})
			continue
		}
		summaries = append(summaries, doc.Summary())
	}

	return summaries, nil
}

// DeleteDocument 删除文档
func (s *DocumentService) DeleteDocument(id string) error {
	if id == "" {
		return errors.NewValidationError("文档ID不能为空", nil)
	}
	if !s.storage.FileExists(documentDir(id), documentFileName) {
		return errors.NewNotFoundError(fmt.Sprintf("文档 %s 不存在", id), nil)
	}

	return s.storage.DeleteFile(documentDir(id), documentFileName)
}

func documentDir(id string) string {
	return filepath.Join("documents", id)
}

// generateDocumentID 由标题和时间戳生成文档ID
func generateDocumentID(title string) string {
	slug := make([]rune, 0, len(title))
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			slug = append(slug, r)
		case r >= 'A' && r <= 'Z':
			slug = append(slug, r+('a'-'A'))
		case r == ' ' || r == '-' || r == '_':
			slug = append(slug, '_')
		}
		if len(slug) >= 24 {
			break
		}
	}
	if len(slug) == 0 {
		slug = []rune("doc")
	}
	return fmt.Sprintf("%s_%s", string(slug), time.Now().Format("20060102150405"))
}
