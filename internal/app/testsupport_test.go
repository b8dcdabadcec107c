package app

import (
	"context"
	"fmt"

	"apiverse/internal/ai"
	"apiverse/internal/model"
)

type memKnowledgeBaseRepo struct {
	kbs    []model.KnowledgeBase
	nextID uint
}

func (r *memKnowledgeBaseRepo) Create(kb *model.KnowledgeBase) error {
	r.nextID++
	kb.ID = r.nextID
	r.kbs = append(r.kbs, *kb)
	return nil
}

func (r *memKnowledgeBaseRepo) ListByUserID(userID uint) ([]model.KnowledgeBase, error) {
	var out []model.KnowledgeBase
	for _, kb := range r.kbs {
		if kb.UserID == userID {
			out = append(out, kb)
		}
	}
	return out, nil
}

func (r *memKnowledgeBaseRepo) GetByIDAndUserID(id, userID uint) (*model.KnowledgeBase, error) {
	for _, kb := range r.kbs {
		if kb.ID == id && kb.UserID == userID {
			copied := kb
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memKnowledgeBaseRepo) GetFirstByUserID(userID uint) (*model.KnowledgeBase, error) {
	for _, kb := range r.kbs {
		if kb.UserID == userID {
			copied := kb
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memKnowledgeBaseRepo) DeleteByIDAndUserID(id, userID uint) error {
	kept := r.kbs[:0]
	for _, kb := range r.kbs {
		if !(kb.ID == id && kb.UserID == userID) {
			kept = append(kept, kb)
		}
	}
	r.kbs = kept
	return nil
}

type memDocumentRepo struct {
	docs      []model.Document
	nextID    uint
	createErr error
}

func (r *memDocumentRepo) Create(doc *model.Document) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	doc.ID = r.nextID
	r.docs = append(r.docs, *doc)
	return nil
}

func (r *memDocumentRepo) ListByKnowledgeBaseID(kbID uint) ([]model.Document, error) {
	var out []model.Document
	for _, doc := range r.docs {
		if doc.KnowledgeBaseID == kbID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *memDocumentRepo) GetByIDAndKnowledgeBaseID(id, kbID uint) (*model.Document, error) {
	for _, doc := range r.docs {
		if doc.ID == id && doc.KnowledgeBaseID == kbID {
			copied := doc
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memDocumentRepo) UpdateRemoteState(doc *model.Document) error {
	for i := range r.docs {
		if r.docs[i].ID == doc.ID {
			r.docs[i].RemoteFileID = doc.RemoteFileID
			r.docs[i].RemoteExpiresAt = doc.RemoteExpiresAt
			r.docs[i].Status = doc.Status
			return nil
		}
	}
	return fmt.Errorf("document %d not found", doc.ID)
}

func (r *memDocumentRepo) DeleteByID(id uint) error {
	kept := r.docs[:0]
	for _, doc := range r.docs {
		if doc.ID != id {
			kept = append(kept, doc)
		}
	}
	r.docs = kept
	return nil
}

func (r *memDocumentRepo) DeleteByKnowledgeBaseID(kbID uint) error {
	kept := r.docs[:0]
	for _, doc := range r.docs {
		if doc.KnowledgeBaseID != kbID {
			kept = append(kept, doc)
		}
	}
	r.docs = kept
	return nil
}

type memSearchQueryRepo struct {
	rows      []model.SearchQuery
	createErr error
}

func (r *memSearchQueryRepo) Create(q *model.SearchQuery) error {
	if r.createErr != nil {
		return r.createErr
	}
	q.ID = uint(len(r.rows) + 1)
	r.rows = append(r.rows, *q)
	return nil
}

func (r *memSearchQueryRepo) CountByUserID(userID uint) (int64, error) {
	var count int64
	for _, row := range r.rows {
		if row.UserID == userID {
			count++
		}
	}
	return count, nil
}

type fakeFileStore struct {
	uploadErr   error
	getRef      *ai.FileRef
	getErr      error
	deleteErr   error
	uploadCalls int
	getCalls    int
	deleted     []string
}

func (f *fakeFileStore) UploadFile(ctx context.Context, data []byte, displayName, mimeType string) (*ai.FileRef, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &ai.FileRef{
		Name:     fmt.Sprintf("files/upload-%d", f.uploadCalls),
		URI:      fmt.Sprintf("https://store.example/files/upload-%d", f.uploadCalls),
		MimeType: mimeType,
	}, nil
}

func (f *fakeFileStore) GetFile(ctx context.Context, name string) (*ai.FileRef, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.getRef != nil {
		return f.getRef, nil
	}
	return &ai.FileRef{Name: name, URI: "https://store.example/" + name}, nil
}

func (f *fakeFileStore) DeleteFile(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErr
}

type fakeGenerator struct {
	result       *ai.GenerateResult
	err          error
	streamChunks []string
	streamErr    error
	calls        int
	streamCalls  int
	lastInput    ai.GenerateInput
}

func (g *fakeGenerator) Generate(ctx context.Context, in ai.GenerateInput) (*ai.GenerateResult, error) {
	g.calls++
	g.lastInput = in
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &ai.GenerateResult{Text: "generated answer", FinishReason: ai.FinishReasonStop}, nil
}

func (g *fakeGenerator) GenerateStream(ctx context.Context, in ai.GenerateInput, onChunk func(string) error) error {
	g.streamCalls++
	g.lastInput = in
	for _, chunk := range g.streamChunks {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return g.streamErr
}

type fakeUsagePublisher struct {
	entries []model.UsageLog
	err     error
}

func (p *fakeUsagePublisher) Publish(ctx context.Context, entry model.UsageLog) error {
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, entry)
	return nil
}

type fakeQuotaCache struct {
	values      map[uint]int64
	getCalls    int
	setCalls    int
	invalidated int
}

func newFakeQuotaCache() *fakeQuotaCache {
	return &fakeQuotaCache{values: make(map[uint]int64)}
}

func (c *fakeQuotaCache) GetUsage(ctx context.Context, userID uint) (int64, bool, error) {
	c.getCalls++
	count, ok := c.values[userID]
	return count, ok, nil
}

func (c *fakeQuotaCache) SetUsage(ctx context.Context, userID uint, count int64) error {
	c.setCalls++
	c.values[userID] = count
	return nil
}

func (c *fakeQuotaCache) Invalidate(ctx context.Context, userID uint) error {
	c.invalidated++
	delete(c.values, userID)
	return nil
}
