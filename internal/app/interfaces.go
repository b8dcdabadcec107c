package app

import (
	"context"

	"apiverse/internal/ai"
	"apiverse/internal/model"
)

// Collaborator contracts consumed by the services. The concrete types live
// in repository, cache, platform/rabbitmq and ai; tests substitute fakes.

type KnowledgeBaseRepo interface {
	Create(kb *model.KnowledgeBase) error
	ListByUserID(userID uint) ([]model.KnowledgeBase, error)
	GetByIDAndUserID(id, userID uint) (*model.KnowledgeBase, error)
	GetFirstByUserID(userID uint) (*model.KnowledgeBase, error)
	DeleteByIDAndUserID(id, userID uint) error
}

type DocumentRepo interface {
	Create(doc *model.Document) error
	ListByKnowledgeBaseID(kbID uint) ([]model.Document, error)
	GetByIDAndKnowledgeBaseID(id, kbID uint) (*model.Document, error)
	UpdateRemoteState(doc *model.Document) error
	DeleteByID(id uint) error
	DeleteByKnowledgeBaseID(kbID uint) error
}

type SearchQueryRepo interface {
	Create(q *model.SearchQuery) error
	CountByUserID(userID uint) (int64, error)
}

// FileStore is the remote, TTL-bound document store.
type FileStore interface {
	UploadFile(ctx context.Context, data []byte, displayName, mimeType string) (*ai.FileRef, error)
	GetFile(ctx context.Context, name string) (*ai.FileRef, error)
	DeleteFile(ctx context.Context, name string) error
}

// Generator is the grounded-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, in ai.GenerateInput) (*ai.GenerateResult, error)
	GenerateStream(ctx context.Context, in ai.GenerateInput, onChunk func(string) error) error
}

type UsageLogPublisher interface {
	Publish(ctx context.Context, entry model.UsageLog) error
}

type QuotaUsageCache interface {
	GetUsage(ctx context.Context, userID uint) (int64, bool, error)
	SetUsage(ctx context.Context, userID uint, count int64) error
	Invalidate(ctx context.Context, userID uint) error
}
