package domain

import (
	"context"
	"time"
)

type BusinessStore interface {
	// Write paths
	UpsertBusiness(ctx context.Context, s BusinessSnapshot) (int64, error)
	SaveReview(ctx context.Context, businessID, groupID int64, rec ReviewRecord) (int64, error)
	DeleteBusinessAndReviews(ctx context.Context, businessID int64) (reviewsDeleted int, err error)
	FindOrCreateGroup(ctx context.Context, groupKey string) (int64, error)
	RecordScrapeFailure(ctx context.Context, businessID int64, reason string) (consecutive int, err error)
	ClearScrapeFailures(ctx context.Context, businessID int64) error

	// Read paths
	FindByURL(ctx context.Context, sourceURL string) (Business, error)
	GetBusiness(ctx context.Context, id int64) (Business, error)
	ListBusinesses(ctx context.Context) ([]Business, error)
	ListReviews(ctx context.Context, businessID int64, pg PageQuery) (ReviewsPage, error)
}

// Scraper produces a complete snapshot for one business page.
type Scraper interface {
	ScrapeBusiness(ctx context.Context, url string) (BusinessSnapshot, error)
}

// TaskQueue defers a unit of work for asynchronous, retryable execution.
// Args must be JSON-serializable.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, args any, retryCount int, retryDelay time.Duration) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Read models & queries

type PageQuery struct {
	Limit int
	Sort  string
}

type ReviewsPage struct {
	Items []Review
}
