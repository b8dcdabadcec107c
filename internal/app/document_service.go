package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"apiverse/internal/ai"
	"apiverse/internal/model"
)

// The remote store discards uploads after ~48 hours. Handles are stamped
// with a 47h local validity window; the missing hour absorbs clock skew and
// request latency so a handle the local clock trusts is still honored
// remotely.
const defaultRemoteFileTTL = 47 * time.Hour

// DocumentService owns the mapping between a durable local document and its
// expiring remote copy. The remote handle is treated as a cache: as long as
// the original bytes are retained, expiry is repaired by re-uploading and
// the user never sees the remote TTL.
type DocumentService struct {
	registry  *KnowledgeBaseService
	docRepo   DocumentRepo
	files     FileStore
	remoteTTL time.Duration
	now       func() time.Time
}

func NewDocumentService(registry *KnowledgeBaseService, docRepo DocumentRepo, files FileStore, remoteTTL time.Duration) *DocumentService {
	if remoteTTL <= 0 {
		remoteTTL = defaultRemoteFileTTL
	}
	return &DocumentService{
		registry:  registry,
		docRepo:   docRepo,
		files:     files,
		remoteTTL: remoteTTL,
		now:       time.Now,
	}
}

type IngestInput struct {
	UserID          uint
	KnowledgeBaseID uint
	Filename        string
	MimeType        string
	Data            []byte
}

// Ingest stores the bytes durably, uploads them to the remote store and
// persists the document. Nothing is persisted when the upload fails.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*model.Document, error) {
	filename := strings.TrimSpace(input.Filename)
	if input.UserID == 0 || filename == "" || len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}

	kb, err := s.registry.GetOwned(input.UserID, input.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	mimeType := strings.TrimSpace(input.MimeType)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	ref, err := s.files.UploadFile(ctx, input.Data, filename, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUpload, err)
	}

	expiresAt := s.now().Add(s.remoteTTL)
	doc := &model.Document{
		KnowledgeBaseID: kb.ID,
		Filename:        filename,
		FileSize:        int64(len(input.Data)),
		MimeType:        mimeType,
		Content:         input.Data,
		RemoteFileID:    ref.Name,
		RemoteExpiresAt: &expiresAt,
		Status:          model.DocStatusActive,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Resolve returns a remote handle that is valid right now, re-uploading the
// durable content when the old handle has aged out. The local expiry stamp
// is only an optimistic estimate; the remote store's own answer overrides it
// in both directions.
func (s *DocumentService) Resolve(ctx context.Context, doc *model.Document) (*ai.FileRef, error) {
	if doc.RemoteFileID == "" || doc.RemoteExpired(s.now()) {
		// Known stale: do not waste a remote fetch on a handle the clock
		// already condemned.
		return s.Reupload(ctx, doc)
	}

	ref, err := s.files.GetFile(ctx, doc.RemoteFileID)
	if errors.Is(err, ai.ErrFileNotFound) {
		// The local estimate was wrong; remote is authoritative.
		return s.Reupload(ctx, doc)
	}
	if err != nil {
		log.Printf("document %d: remote fetch failed: %v", doc.ID, err)
		return nil, err
	}
	return ref, nil
}

// Reupload pushes the durable content back into the remote store and
// replaces the handle and expiry. Idempotent: racing callers each get a
// valid handle and the last writer wins, which is safe because the loser's
// handle stays usable until its own expiry.
func (s *DocumentService) Reupload(ctx context.Context, doc *model.Document) (*ai.FileRef, error) {
	if len(doc.Content) == 0 {
		// Not recoverable without the user re-submitting the file.
		doc.Status = model.DocStatusExpired
		if err := s.docRepo.UpdateRemoteState(doc); err != nil {
			log.Printf("document %d: mark expired failed: %v", doc.ID, err)
		}
		return nil, ErrContentMissing
	}

	ref, err := s.files.UploadFile(ctx, doc.Content, doc.Filename, doc.MimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUpload, err)
	}

	expiresAt := s.now().Add(s.remoteTTL)
	doc.RemoteFileID = ref.Name
	doc.RemoteExpiresAt = &expiresAt
	doc.Status = model.DocStatusActive
	if err := s.docRepo.UpdateRemoteState(doc); err != nil {
		// The fresh handle is still usable for this request; the stale row
		// just triggers another re-upload next time.
		log.Printf("document %d: persist refreshed handle failed: %v", doc.ID, err)
	}
	return ref, nil
}

func (s *DocumentService) List(userID, kbID uint) ([]model.Document, error) {
	kb, err := s.registry.GetOwned(userID, kbID)
	if err != nil {
		return nil, err
	}
	return s.docRepo.ListByKnowledgeBaseID(kb.ID)
}

// Delete removes the remote copy best-effort and the local row always; the
// user-visible document list is driven by local state alone.
func (s *DocumentService) Delete(ctx context.Context, userID, kbID, docID uint) error {
	kb, err := s.registry.GetOwned(userID, kbID)
	if err != nil {
		return err
	}
	doc, err := s.docRepo.GetByIDAndKnowledgeBaseID(docID, kb.ID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	if doc.RemoteFileID != "" {
		if err := s.files.DeleteFile(ctx, doc.RemoteFileID); err != nil {
			log.Printf("document %d: delete remote file %s failed: %v", doc.ID, doc.RemoteFileID, err)
		}
	}
	return s.docRepo.DeleteByID(doc.ID)
}
