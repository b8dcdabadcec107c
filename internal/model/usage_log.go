package model

import "time"

type UsageLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ServiceType string    `gorm:"size:50" json:"service_type"`
	Status      string    `gorm:"size:50" json:"status"`
	Details     string    `gorm:"size:500" json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}
