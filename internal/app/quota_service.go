package app

import (
	"context"
	"fmt"
	"log"

	"apiverse/internal/model"
)

const defaultSearchQuotaLimit = 100

// QuotaService is the sole admission-control gate for searches. Usage is the
// count of SearchQuery rows per user, lifetime cumulative; there is no decay
// and no time window. Two concurrent requests near the limit may both be
// admitted; the cap is soft.
type QuotaService struct {
	queryRepo SearchQueryRepo
	cache     QuotaUsageCache
	limit     int
}

func NewQuotaService(queryRepo SearchQueryRepo, cache QuotaUsageCache, limit int) *QuotaService {
	if limit <= 0 {
		limit = defaultSearchQuotaLimit
	}
	return &QuotaService{
		queryRepo: queryRepo,
		cache:     cache,
		limit:     limit,
	}
}

func (s *QuotaService) Limit() int {
	return s.limit
}

// Usage returns the number of search queries the user has made.
func (s *QuotaService) Usage(ctx context.Context, userID uint) (int64, error) {
	if s.cache != nil {
		if count, hit, err := s.cache.GetUsage(ctx, userID); err == nil && hit {
			return count, nil
		}
	}
	count, err := s.queryRepo.CountByUserID(userID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.SetUsage(ctx, userID, count); err != nil {
			log.Printf("quota: cache usage for user %d failed: %v", userID, err)
		}
	}
	return count, nil
}

// Remaining reports the unused quota, clamped at zero so an admission-race
// overshoot never reads negative.
func (s *QuotaService) Remaining(ctx context.Context, userID uint) (int, error) {
	usage, err := s.Usage(ctx, userID)
	if err != nil {
		return 0, err
	}
	remaining := s.limit - int(usage)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Admit rejects the request once usage has reached the limit. It must pass
// before any retrieval work is done or any usage row is written.
func (s *QuotaService) Admit(ctx context.Context, userID uint) (int, error) {
	usage, err := s.Usage(ctx, userID)
	if err != nil {
		return 0, err
	}
	if usage >= int64(s.limit) {
		return 0, fmt.Errorf("free quota of %d searches used up, please upgrade your plan: %w", s.limit, ErrQuotaExceeded)
	}
	return s.limit - int(usage), nil
}

// Record writes the usage row for an accepted search. Exactly one row per
// logical request; the cached count is invalidated so the next read sees it.
func (s *QuotaService) Record(ctx context.Context, query *model.SearchQuery) error {
	if err := s.queryRepo.Create(query); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, query.UserID); err != nil {
			log.Printf("quota: invalidate usage cache for user %d failed: %v", query.UserID, err)
		}
	}
	return nil
}
