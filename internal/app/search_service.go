package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"apiverse/internal/ai"
	"apiverse/internal/model"
)

const searchSystemInstruction = "You are a document assistant. Answer using only the content of the " +
	"attached documents; do not use outside knowledge and do not make up facts. " +
	"Reply in the same language the question was asked in. If the documents do " +
	"not contain the answer, say politely that you could not find it in the " +
	"provided documents."

const (
	noDocumentsAnswer = "This knowledge base has no documents yet. Upload a document and try again. " +
		"该知识库还没有文档，请先上传文档后再试。"
	noAccessibleDocumentsAnswer = "No accessible documents found in this knowledge base. " +
		"未能在该知识库中找到可访问的文档。"
	degradedAnswer = "Sorry, I could not produce an answer from your documents this time. " +
		"Please try rephrasing the question. 抱歉，这次未能根据您的文档生成回答，请换一种问法再试。"
	streamErrorAnswer = "Sorry, the answer was interrupted by an internal error. " +
		"抱歉，回答因内部错误被中断。"
)

type SearchResult struct {
	Text           string  `json:"text"`
	Score          float64 `json:"score"`
	SourceDocument string  `json:"source_document"`
}

type SearchOutput struct {
	Results        []SearchResult `json:"results"`
	RemainingQuota int            `json:"remaining_quota"`
}

type SearchInput struct {
	UserID          uint
	KnowledgeBaseID uint
	Query           string
}

// SearchService builds a grounded generation request from a query and the
// knowledge base's currently-valid remote handles, and normalizes the answer
// into the search result contract, buffered or streamed.
type SearchService struct {
	quota     *QuotaService
	registry  *KnowledgeBaseService
	documents *DocumentService
	generator Generator
	usage     UsageLogPublisher
}

func NewSearchService(
	quota *QuotaService,
	registry *KnowledgeBaseService,
	documents *DocumentService,
	generator Generator,
	usage UsageLogPublisher,
) *SearchService {
	return &SearchService{
		quota:     quota,
		registry:  registry,
		documents: documents,
		generator: generator,
		usage:     usage,
	}
}

// prepared carries everything the two delivery modes share after admission,
// ownership checks, handle resolution and usage accounting.
type prepared struct {
	fixedAnswer string
	input       ai.GenerateInput
}

// prepare runs steps shared by buffered and streamed search: quota
// admission, ownership-checked knowledge base lookup, per-document handle
// resolution and the usage/audit writes. Usage is charged on admission into
// the generation step, not on its success, so a downstream generation
// failure still consumes quota. When fixedAnswer is non-empty the request
// was accepted and charged but there is nothing to generate.
func (s *SearchService) prepare(ctx context.Context, in SearchInput) (*prepared, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.quota.Admit(ctx, in.UserID); err != nil {
		return nil, err
	}

	kb, err := s.registry.GetOwned(in.UserID, in.KnowledgeBaseID)
	if err != nil {
		return nil, err
	}

	docs, err := s.documents.List(in.UserID, kb.ID)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		if err := s.recordUsage(ctx, kb, query); err != nil {
			return nil, err
		}
		return &prepared{fixedAnswer: noDocumentsAnswer}, nil
	}

	// A single bad document must not fail the whole search; unresolved
	// handles are skipped and only visible in aggregate.
	var files []ai.FileRef
	for i := range docs {
		ref, err := s.documents.Resolve(ctx, &docs[i])
		if err != nil {
			log.Printf("search: skip document %d: %v", docs[i].ID, err)
			continue
		}
		files = append(files, *ref)
	}

	if err := s.recordUsage(ctx, kb, query); err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return &prepared{fixedAnswer: noAccessibleDocumentsAnswer}, nil
	}

	return &prepared{
		input: ai.GenerateInput{
			SystemInstruction: searchSystemInstruction,
			Files:             files,
			Query:             query,
		},
	}, nil
}

func (s *SearchService) recordUsage(ctx context.Context, kb *model.KnowledgeBase, query string) error {
	if err := s.quota.Record(ctx, &model.SearchQuery{
		UserID:          kb.UserID,
		KnowledgeBaseID: kb.ID,
		QueryText:       query,
	}); err != nil {
		return err
	}
	if s.usage != nil {
		entry := model.UsageLog{
			UserID:      kb.UserID,
			ServiceType: "file_search",
			Status:      "success",
			Details:     "KB: " + kb.Name,
		}
		if err := s.usage.Publish(ctx, entry); err != nil {
			log.Printf("search: publish usage log failed: %v", err)
		}
	}
	return nil
}

// Search is the buffered mode: one request, one normalized result.
func (s *SearchService) Search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	prep, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	text := prep.fixedAnswer
	if text == "" {
		res, genErr := s.generator.Generate(ctx, prep.input)
		if genErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, genErr)
		}
		text = res.Text
		if text == "" {
			// No candidates, or a blocked/odd finish with no residual text.
			// The user gets a graceful answer, not an error.
			text = degradedAnswer
		}
	}

	remaining, err := s.quota.Remaining(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{
		Results: []SearchResult{{
			Text:           text,
			Score:          1.0,
			SourceDocument: "combined",
		}},
		RemainingQuota: remaining,
	}, nil
}

// SearchStream is the streamed mode: fragments are forwarded to onChunk in
// generation order. The usage row is written before streaming begins, so a
// client disconnect mid-stream never loses the charge. A generation error
// mid-stream is delivered as one final user-facing fragment instead of
// escaping past fragments already sent.
func (s *SearchService) SearchStream(ctx context.Context, in SearchInput, onChunk func(string) error) error {
	prep, err := s.prepare(ctx, in)
	if err != nil {
		return err
	}

	if prep.fixedAnswer != "" {
		return onChunk(prep.fixedAnswer)
	}

	if err := s.generator.GenerateStream(ctx, prep.input, onChunk); err != nil {
		if ctx.Err() != nil {
			// Consumer is gone; stop producing, nothing useful to send.
			return nil
		}
		log.Printf("search: stream generation failed: %v", err)
		_ = onChunk(streamErrorAnswer)
	}
	return nil
}

// Quota reports the ledger state for the quota endpoint.
func (s *SearchService) Quota(ctx context.Context, userID uint) (used int64, limit, remaining int, err error) {
	used, err = s.quota.Usage(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}
	remaining, err = s.quota.Remaining(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}
	return used, s.quota.Limit(), remaining, nil
}
