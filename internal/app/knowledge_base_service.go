package app

import (
	"context"
	"log"
	"strings"

	"apiverse/internal/model"
)

// KnowledgeBaseService is the ownership boundary for everything below it.
// All knowledge-base lookups go through GetOwned; identifiers are small
// sequential integers, so an unscoped lookup would leak other tenants' data.
type KnowledgeBaseService struct {
	kbRepo  KnowledgeBaseRepo
	docRepo DocumentRepo
	files   FileStore
}

func NewKnowledgeBaseService(kbRepo KnowledgeBaseRepo, docRepo DocumentRepo, files FileStore) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		kbRepo:  kbRepo,
		docRepo: docRepo,
		files:   files,
	}
}

func (s *KnowledgeBaseService) Create(userID uint, name, description string) (*model.KnowledgeBase, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}

	kb := &model.KnowledgeBase{
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := s.kbRepo.Create(kb); err != nil {
		return nil, err
	}
	return kb, nil
}

func (s *KnowledgeBaseService) List(userID uint) ([]model.KnowledgeBase, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.kbRepo.ListByUserID(userID)
}

// GetOwned resolves a knowledge base only if it belongs to the user. A
// foreign or absent id is the same ErrKnowledgeBaseNotFound either way.
func (s *KnowledgeBaseService) GetOwned(userID, kbID uint) (*model.KnowledgeBase, error) {
	if userID == 0 || kbID == 0 {
		return nil, ErrKnowledgeBaseNotFound
	}
	kb, err := s.kbRepo.GetByIDAndUserID(kbID, userID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

// DefaultForUser picks the user's oldest knowledge base, used when a widget
// request does not name one.
func (s *KnowledgeBaseService) DefaultForUser(userID uint) (*model.KnowledgeBase, error) {
	if userID == 0 {
		return nil, ErrKnowledgeBaseNotFound
	}
	kb, err := s.kbRepo.GetFirstByUserID(userID)
	if err != nil {
		return nil, err
	}
	if kb == nil {
		return nil, ErrKnowledgeBaseNotFound
	}
	return kb, nil
}

// Delete cascades: remote copies are removed best-effort, documents and the
// knowledge base row unconditionally. Local state stays authoritative even
// when the remote side is unreachable.
func (s *KnowledgeBaseService) Delete(ctx context.Context, userID, kbID uint) error {
	kb, err := s.GetOwned(userID, kbID)
	if err != nil {
		return err
	}

	docs, err := s.docRepo.ListByKnowledgeBaseID(kb.ID)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if doc.RemoteFileID == "" {
			continue
		}
		if err := s.files.DeleteFile(ctx, doc.RemoteFileID); err != nil {
			log.Printf("knowledge base %d: delete remote file %s failed: %v", kb.ID, doc.RemoteFileID, err)
		}
	}

	if err := s.docRepo.DeleteByKnowledgeBaseID(kb.ID); err != nil {
		return err
	}
	return s.kbRepo.DeleteByIDAndUserID(kb.ID, userID)
}
