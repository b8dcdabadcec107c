package app

import (
	"context"
	"errors"
	"testing"

	"apiverse/internal/model"
)

func seedQueries(repo *memSearchQueryRepo, userID uint, n int) {
	for i := 0; i < n; i++ {
		repo.rows = append(repo.rows, model.SearchQuery{
			ID:     uint(len(repo.rows) + 1),
			UserID: userID,
		})
	}
}

func TestQuotaRemainingMatchesRowCount(t *testing.T) {
	repo := &memSearchQueryRepo{}
	seedQueries(repo, 1, 37)
	svc := NewQuotaService(repo, nil, 100)

	remaining, err := svc.Remaining(context.Background(), 1)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 63 {
		t.Fatalf("remaining = %d, want 63", remaining)
	}
}

func TestQuotaRemainingClampedAtZero(t *testing.T) {
	// The admission race can overshoot the limit; reporting must not go
	// negative.
	repo := &memSearchQueryRepo{}
	seedQueries(repo, 1, 12)
	svc := NewQuotaService(repo, nil, 10)

	remaining, err := svc.Remaining(context.Background(), 1)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
}

func TestQuotaAdmitAtLimit(t *testing.T) {
	repo := &memSearchQueryRepo{}
	seedQueries(repo, 1, 100)
	svc := NewQuotaService(repo, nil, 100)

	if _, err := svc.Admit(context.Background(), 1); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Admit at limit: err = %v, want ErrQuotaExceeded", err)
	}
}

func TestQuotaAdmitBelowLimit(t *testing.T) {
	repo := &memSearchQueryRepo{}
	seedQueries(repo, 1, 99)
	svc := NewQuotaService(repo, nil, 100)

	remaining, err := svc.Admit(context.Background(), 1)
	if err != nil {
		t.Fatalf("Admit: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
}

func TestQuotaUsesCacheAndInvalidatesOnRecord(t *testing.T) {
	repo := &memSearchQueryRepo{}
	seedQueries(repo, 1, 5)
	cache := newFakeQuotaCache()
	svc := NewQuotaService(repo, cache, 100)
	ctx := context.Background()

	// First read misses the cache and fills it.
	if usage, err := svc.Usage(ctx, 1); err != nil || usage != 5 {
		t.Fatalf("Usage = %d, %v; want 5, nil", usage, err)
	}
	if cache.setCalls != 1 {
		t.Fatalf("cache setCalls = %d, want 1", cache.setCalls)
	}

	// Second read is served from the cache.
	if _, err := svc.Usage(ctx, 1); err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if cache.getCalls != 2 {
		t.Fatalf("cache getCalls = %d, want 2", cache.getCalls)
	}

	// Recording a row drops the stale entry.
	if err := svc.Record(ctx, &model.SearchQuery{UserID: 1, KnowledgeBaseID: 1, QueryText: "q"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if cache.invalidated != 1 {
		t.Fatalf("cache invalidated = %d, want 1", cache.invalidated)
	}
	if usage, err := svc.Usage(ctx, 1); err != nil || usage != 6 {
		t.Fatalf("Usage after record = %d, %v; want 6, nil", usage, err)
	}
}

func TestQuotaDefaultLimit(t *testing.T) {
	svc := NewQuotaService(&memSearchQueryRepo{}, nil, 0)
	if svc.Limit() != 100 {
		t.Fatalf("Limit = %d, want 100", svc.Limit())
	}
}
