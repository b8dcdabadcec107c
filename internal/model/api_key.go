package model

import "time"

type APIKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:255;not null;uniqueIndex" json:"key"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Label     string    `gorm:"size:100" json:"label"`
	CreatedAt time.Time `json:"created_at"`
}
