package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"apiverse/internal/model"
)

type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *model.APIKey) error {
	if err := r.db.Create(key).Error; err != nil {
		return fmt.Errorf("create api key failed: %w", err)
	}
	return nil
}

func (r *APIKeyRepository) ListByUserID(userID uint) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("list api keys failed: %w", err)
	}
	return keys, nil
}

// GetByKey resolves an API key by exact key material match.
func (r *APIKeyRepository) GetByKey(key string) (*model.APIKey, error) {
	var record model.APIKey
	if err := r.db.Where("`key` = ?", key).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get api key failed: %w", err)
	}
	return &record, nil
}

func (r *APIKeyRepository) DeleteByIDAndUserID(id, userID uint) error {
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.APIKey{}).Error; err != nil {
		return fmt.Errorf("delete api key failed: %w", err)
	}
	return nil
}
