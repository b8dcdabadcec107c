package repository

import (
	"fmt"

	"gorm.io/gorm"

	"apiverse/internal/model"
)

type UsageLogRepository struct {
	db *gorm.DB
}

func NewUsageLogRepository(db *gorm.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

func (r *UsageLogRepository) Create(entry *model.UsageLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("create usage log failed: %w", err)
	}
	return nil
}
