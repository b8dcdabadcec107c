package model

import "time"

// Document statuses. Only StatusActive and StatusExpired are driven by the
// current lifecycle; the rest are reserved for a future ingestion pipeline.
const (
	DocStatusActive     = "active"
	DocStatusExpired    = "expired"
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusFailed     = "failed"
)

// Document is the durable record of an uploaded file. Content is the source
// of truth; the remote file referenced by RemoteFileID is a cache of an
// upload and expires roughly 48 hours after it was made.
type Document struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	KnowledgeBaseID uint       `gorm:"not null;index" json:"knowledge_base_id"`
	Filename        string     `gorm:"size:255;not null" json:"filename"`
	FileSize        int64      `json:"file_size"`
	MimeType        string     `gorm:"size:100" json:"mime_type"`
	Content         []byte     `gorm:"type:longblob" json:"-"`
	RemoteFileID    string     `gorm:"size:255" json:"remote_file_id"`
	RemoteExpiresAt *time.Time `json:"remote_expires_at"`
	Status          string     `gorm:"size:50;default:active" json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RemoteExpired reports whether the locally cached expiry estimate says the
// remote copy is gone. The remote store stays authoritative; a false here
// does not guarantee the handle is still recognized.
func (d *Document) RemoteExpired(now time.Time) bool {
	return d.RemoteExpiresAt == nil || !now.Before(*d.RemoteExpiresAt)
}
