package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"apiverse/internal/ai"
	"apiverse/internal/model"
)

type searchFixture struct {
	svc       *SearchService
	queryRepo *memSearchQueryRepo
	docRepo   *memDocumentRepo
	files     *fakeFileStore
	generator *fakeGenerator
	usage     *fakeUsagePublisher
	kb        *model.KnowledgeBase
}

func newSearchFixture(t *testing.T, limit int) *searchFixture {
	t.Helper()
	kbRepo := &memKnowledgeBaseRepo{}
	docRepo := &memDocumentRepo{}
	queryRepo := &memSearchQueryRepo{}
	files := &fakeFileStore{}
	generator := &fakeGenerator{}
	usage := &fakeUsagePublisher{}

	kbSvc := NewKnowledgeBaseService(kbRepo, docRepo, files)
	kb, err := kbSvc.Create(1, "Support Docs", "")
	if err != nil {
		t.Fatalf("Create kb: %v", err)
	}
	docSvc := NewDocumentService(kbSvc, docRepo, files, 47*time.Hour)
	quota := NewQuotaService(queryRepo, newFakeQuotaCache(), limit)
	return &searchFixture{
		svc:       NewSearchService(quota, kbSvc, docSvc, generator, usage),
		queryRepo: queryRepo,
		docRepo:   docRepo,
		files:     files,
		generator: generator,
		usage:     usage,
		kb:        kb,
	}
}

func (f *searchFixture) addDocument(id uint, filename string) {
	expires := time.Now().Add(time.Hour)
	f.docRepo.docs = append(f.docRepo.docs, model.Document{
		ID:              id,
		KnowledgeBaseID: f.kb.ID,
		Filename:        filename,
		Content:         []byte("content of " + filename),
		RemoteFileID:    "files/" + filename,
		RemoteExpiresAt: &expires,
		Status:          model.DocStatusActive,
	})
	if id > f.docRepo.nextID {
		f.docRepo.nextID = id
	}
}

func (f *searchFixture) input(query string) SearchInput {
	return SearchInput{UserID: 1, KnowledgeBaseID: f.kb.ID, Query: query}
}

func TestSearchHappyPath(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	f.generator.result = &ai.GenerateResult{
		Text:         "Alpha widget specs: max load 10kg.",
		FinishReason: ai.FinishReasonStop,
	}
	seedQueries(f.queryRepo, 1, 99)

	out, err := f.svc.Search(context.Background(), f.input("What is the max load?"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(out.Results))
	}
	res := out.Results[0]
	if res.Text != "Alpha widget specs: max load 10kg." {
		t.Fatalf("text = %q", res.Text)
	}
	if res.Score != 1.0 || res.SourceDocument != "combined" {
		t.Fatalf("score = %v source = %q", res.Score, res.SourceDocument)
	}
	if out.RemainingQuota != 0 {
		t.Fatalf("remaining = %d, want 0 after the 100th search", out.RemainingQuota)
	}
	if len(f.queryRepo.rows) != 100 {
		t.Fatalf("usage rows = %d, want 100", len(f.queryRepo.rows))
	}
	if f.generator.lastInput.Query != "What is the max load?" {
		t.Fatalf("generator query = %q", f.generator.lastInput.Query)
	}
	if len(f.generator.lastInput.Files) != 1 {
		t.Fatalf("generator files = %d, want 1", len(f.generator.lastInput.Files))
	}
}

func TestSearchRejectedAtLimit(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	seedQueries(f.queryRepo, 1, 100)

	_, err := f.svc.Search(context.Background(), f.input("one more"))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
	if len(f.queryRepo.rows) != 100 {
		t.Fatalf("usage rows = %d, a rejected request must not add one", len(f.queryRepo.rows))
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator called on a rejected request")
	}
	if f.files.getCalls != 0 && f.files.uploadCalls != 0 {
		t.Fatalf("retrieval work done on a rejected request")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	f := newSearchFixture(t, 100)

	_, err := f.svc.Search(context.Background(), f.input("   "))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if len(f.queryRepo.rows) != 0 {
		t.Fatalf("usage recorded for an invalid request")
	}
}

func TestSearchForeignKnowledgeBase(t *testing.T) {
	f := newSearchFixture(t, 100)

	_, err := f.svc.Search(context.Background(), SearchInput{UserID: 2, KnowledgeBaseID: f.kb.ID, Query: "q"})
	if !errors.Is(err, ErrKnowledgeBaseNotFound) {
		t.Fatalf("err = %v, want ErrKnowledgeBaseNotFound", err)
	}
	if len(f.queryRepo.rows) != 0 {
		t.Fatalf("usage recorded for a foreign knowledge base")
	}
}

func TestSearchEmptyKnowledgeBase(t *testing.T) {
	f := newSearchFixture(t, 100)

	out, err := f.svc.Search(context.Background(), f.input("anything"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Results[0].Text != noDocumentsAnswer {
		t.Fatalf("text = %q, want the empty-knowledge-base answer", out.Results[0].Text)
	}
	// Accepted and answered, so it is charged like any other search.
	if len(f.queryRepo.rows) != 1 {
		t.Fatalf("usage rows = %d, want 1", len(f.queryRepo.rows))
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator called with no documents")
	}
	if out.RemainingQuota != 99 {
		t.Fatalf("remaining = %d, want 99", out.RemainingQuota)
	}
	if len(f.usage.entries) != 1 || f.usage.entries[0].Details != "KB: Support Docs" {
		t.Fatalf("usage log entries = %v", f.usage.entries)
	}
}

func TestSearchNoResolvableDocuments(t *testing.T) {
	f := newSearchFixture(t, 100)
	// One document whose remote copy is gone and whose bytes were never
	// retained, so resolution has nothing to fall back on.
	f.docRepo.docs = append(f.docRepo.docs, model.Document{
		ID:              1,
		KnowledgeBaseID: f.kb.ID,
		Filename:        "legacy.pdf",
		Status:          model.DocStatusActive,
	})
	f.docRepo.nextID = 1

	out, err := f.svc.Search(context.Background(), f.input("anything"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Results[0].Text != noAccessibleDocumentsAnswer {
		t.Fatalf("text = %q, want the no-accessible-documents answer", out.Results[0].Text)
	}
	if len(f.queryRepo.rows) != 1 {
		t.Fatalf("usage rows = %d, want 1", len(f.queryRepo.rows))
	}
	if f.generator.calls != 0 {
		t.Fatalf("generator called with zero resolved files")
	}
}

func TestSearchSkipsUnresolvableDocument(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "good.pdf")
	// Second document has neither a live handle nor durable bytes.
	f.docRepo.docs = append(f.docRepo.docs, model.Document{
		ID:              2,
		KnowledgeBaseID: f.kb.ID,
		Filename:        "broken.pdf",
	})
	f.docRepo.nextID = 2

	if _, err := f.svc.Search(context.Background(), f.input("q")); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(f.generator.lastInput.Files) != 1 {
		t.Fatalf("generator files = %d, want only the resolvable one", len(f.generator.lastInput.Files))
	}
}

func TestSearchEmptyGenerationDegrades(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	f.generator.result = &ai.GenerateResult{}

	out, err := f.svc.Search(context.Background(), f.input("q"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.Results[0].Text != degradedAnswer {
		t.Fatalf("text = %q, want the degraded answer", out.Results[0].Text)
	}
}

func TestSearchGenerationFailureStillCharged(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	f.generator.err = errors.New("model unavailable")

	_, err := f.svc.Search(context.Background(), f.input("q"))
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("err = %v, want ErrSearchFailed", err)
	}
	if len(f.queryRepo.rows) != 1 {
		t.Fatalf("usage rows = %d, the charge precedes generation", len(f.queryRepo.rows))
	}
}

func TestSearchStreamForwardsFragments(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	f.generator.streamChunks = []string{"Alpha ", "widget ", "specs."}

	var got []string
	err := f.svc.SearchStream(context.Background(), f.input("q"), func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("SearchStream: %v", err)
	}
	if len(got) != 3 || got[0] != "Alpha " || got[2] != "specs." {
		t.Fatalf("chunks = %v", got)
	}
	if len(f.queryRepo.rows) != 1 {
		t.Fatalf("usage rows = %d, want 1", len(f.queryRepo.rows))
	}
}

func TestSearchStreamErrorAfterFragments(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	f.generator.streamChunks = []string{"first ", "second "}
	f.generator.streamErr = errors.New("stream cut")

	var got []string
	err := f.svc.SearchStream(context.Background(), f.input("q"), func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("SearchStream: err = %v, mid-stream failures must not escape", err)
	}
	if len(got) != 3 {
		t.Fatalf("chunks = %v, want the two fragments plus the apology", got)
	}
	if got[2] != streamErrorAnswer {
		t.Fatalf("final chunk = %q, want the stream error answer", got[2])
	}
}

func TestSearchStreamCanceledContextStopsSilently(t *testing.T) {
	f := newSearchFixture(t, 100)
	f.addDocument(1, "alpha.pdf")
	ctx, cancel := context.WithCancel(context.Background())
	f.generator.streamChunks = []string{"first "}
	f.generator.streamErr = context.Canceled

	var got []string
	err := f.svc.SearchStream(ctx, f.input("q"), func(chunk string) error {
		got = append(got, chunk)
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("SearchStream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("chunks = %v, no apology after the consumer left", got)
	}
}

func TestSearchStreamFixedAnswerSingleChunk(t *testing.T) {
	f := newSearchFixture(t, 100)

	var got []string
	err := f.svc.SearchStream(context.Background(), f.input("q"), func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("SearchStream: %v", err)
	}
	if len(got) != 1 || got[0] != noDocumentsAnswer {
		t.Fatalf("chunks = %v, want only the empty-knowledge-base answer", got)
	}
	if f.generator.streamCalls != 0 {
		t.Fatalf("generator streamed with no documents")
	}
}

func TestQuotaEndpointReportsLedger(t *testing.T) {
	f := newSearchFixture(t, 100)
	seedQueries(f.queryRepo, 1, 40)

	used, limit, remaining, err := f.svc.Quota(context.Background(), 1)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if used != 40 || limit != 100 || remaining != 60 {
		t.Fatalf("used = %d limit = %d remaining = %d", used, limit, remaining)
	}
}
