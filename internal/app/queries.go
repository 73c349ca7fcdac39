package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trustpilot_fetcher/internal/domain"
)

type QueryService struct {
	store    domain.BusinessStore
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(st domain.BusinessStore, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: st, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	key := fmt.Sprintf("business:%d", id)
	var b domain.Business
	if ok, _ := s.cache.Get(ctx, key, &b); ok {
		return b, nil
	}
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	_ = s.cache.Set(ctx, key, b, int(s.cacheTTL.Seconds()))
	return b, nil
}

func (s *QueryService) ListReviews(ctx context.Context, id int64, pg domain.PageQuery) (domain.ReviewsPage, error) {
	key := fmt.Sprintf("reviews:%d:%d:%s", id, pg.Limit, pg.Sort)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	rs, err := s.store.ListReviews(ctx, id, pg)
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the store's backing array
	copyRS := deepCopyReviewsPage(rs)

	// size guard: don't cache pathological pages
	if b, _ := json.Marshal(copyRS); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, copyRS, int(s.cacheTTL.Seconds()))
	}
	return copyRS, nil
}

func deepCopyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	var out domain.ReviewsPage
	if n := len(in.Items); n > 0 {
		out.Items = make([]domain.Review, n)
		copy(out.Items, in.Items)
	}
	return out
}
