package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"apiverse/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListByKnowledgeBaseID(kbID uint) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("knowledge_base_id = ?", kbID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByIDAndKnowledgeBaseID(id, kbID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND knowledge_base_id = ?", id, kbID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// UpdateRemoteState persists a refreshed remote handle, expiry and status
// after an upload or a failed resolution.
func (r *DocumentRepository) UpdateRemoteState(doc *model.Document) error {
	updates := map[string]interface{}{
		"remote_file_id":    doc.RemoteFileID,
		"remote_expires_at": doc.RemoteExpiresAt,
		"status":            doc.Status,
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", doc.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("update document remote state failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByID(id uint) error {
	if err := r.db.Delete(&model.Document{}, id).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByKnowledgeBaseID(kbID uint) error {
	if err := r.db.Where("knowledge_base_id = ?", kbID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete documents by knowledge base failed: %w", err)
	}
	return nil
}
