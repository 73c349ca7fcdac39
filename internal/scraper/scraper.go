// Package scraper implements the scrape-extract pipeline against a
// Trustpilot business review page: URL validation, page fetch, JSON-LD
// extraction, and business/review record assembly.
package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"trustpilot_fetcher/internal/domain"
)

type Scraper struct {
	fetcher *Fetcher
	now     func() time.Time
	log     zerolog.Logger
}

func New(fetcher *Fetcher, log zerolog.Logger) *Scraper {
	return &Scraper{fetcher: fetcher, now: time.Now, log: log}
}

// WithClock overrides the snapshot timestamp source. Tests use it.
func (s *Scraper) WithClock(now func() time.Time) *Scraper {
	s.now = now
	return s
}

// ScrapeBusiness runs the full pipeline for one business page. Every
// stage is a hard gate: the first failure aborts the scrape and nothing
// partial is returned. Retry policy belongs to the caller.
func (s *Scraper) ScrapeBusiness(ctx context.Context, url string) (domain.BusinessSnapshot, error) {
	if !ValidURL(url) {
		return domain.BusinessSnapshot{}, ErrInvalidURL
	}

	html, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return domain.BusinessSnapshot{}, err
	}

	blocks := ExtractStructuredData(html)
	if len(blocks) == 0 {
		return domain.BusinessSnapshot{}, ErrNoStructuredData
	}

	biz, err := ExtractBusinessData(blocks, html)
	if err != nil {
		return domain.BusinessSnapshot{}, err
	}

	reviews := ExtractReviews(blocks)

	snap := domain.BusinessSnapshot{
		SourceURL:       url,
		DisplayName:     biz.Name,
		AggregateRating: biz.Rating,
		ReviewCount:     biz.ReviewCount,
		BestRating:      biz.BestRating,
		WorstRating:     biz.WorstRating,
		ScrapedAt:       s.now(),
		Reviews:         reviews,
	}

	s.log.Info().
		Str("url", url).
		Str("name", biz.Name).
		Float64("rating", biz.Rating).
		Int("review_count", biz.ReviewCount).
		Int("reviews_extracted", len(reviews)).
		Msg("business scraped")

	return snap, nil
}
