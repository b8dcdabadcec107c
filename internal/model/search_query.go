package model

import "time"

// SearchQuery is one row per accepted search request. The row count per user
// is the entire input to quota accounting; rows are never mutated or deleted.
type SearchQuery struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	KnowledgeBaseID uint      `gorm:"not null;index" json:"knowledge_base_id"`
	QueryText       string    `gorm:"size:5000" json:"query_text"`
	CreatedAt       time.Time `json:"created_at"`
}
