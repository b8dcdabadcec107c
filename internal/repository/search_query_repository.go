package repository

import (
	"fmt"

	"gorm.io/gorm"

	"apiverse/internal/model"
)

type SearchQueryRepository struct {
	db *gorm.DB
}

func NewSearchQueryRepository(db *gorm.DB) *SearchQueryRepository {
	return &SearchQueryRepository{db: db}
}

func (r *SearchQueryRepository) Create(q *model.SearchQuery) error {
	if err := r.db.Create(q).Error; err != nil {
		return fmt.Errorf("create search query failed: %w", err)
	}
	return nil
}

func (r *SearchQueryRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.SearchQuery{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count search queries failed: %w", err)
	}
	return count, nil
}
