package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"apiverse/internal/model"
)

type KnowledgeBaseRepository struct {
	db *gorm.DB
}

func NewKnowledgeBaseRepository(db *gorm.DB) *KnowledgeBaseRepository {
	return &KnowledgeBaseRepository{db: db}
}

func (r *KnowledgeBaseRepository) Create(kb *model.KnowledgeBase) error {
	if err := r.db.Create(kb).Error; err != nil {
		return fmt.Errorf("create knowledge base failed: %w", err)
	}
	return nil
}

func (r *KnowledgeBaseRepository) ListByUserID(userID uint) ([]model.KnowledgeBase, error) {
	var list []model.KnowledgeBase
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list knowledge bases failed: %w", err)
	}
	return list, nil
}

// GetByIDAndUserID scopes the lookup to the owner; a foreign id yields nil.
func (r *KnowledgeBaseRepository) GetByIDAndUserID(id, userID uint) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get knowledge base failed: %w", err)
	}
	return &kb, nil
}

// GetFirstByUserID returns the user's oldest knowledge base, used as the
// default for widget searches that do not name one.
func (r *KnowledgeBaseRepository) GetFirstByUserID(userID uint) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.Where("user_id = ?", userID).Order("id ASC").First(&kb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get first knowledge base failed: %w", err)
	}
	return &kb, nil
}

func (r *KnowledgeBaseRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.KnowledgeBase{}).Error; err != nil {
		return fmt.Errorf("delete knowledge base failed: %w", err)
	}
	return nil
}
