package domain

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// BusinessSnapshot is the complete result of one scrape: the business's
// scalar fields plus every review found on the page, in page order.
type BusinessSnapshot struct {
	SourceURL       string
	DisplayName     string
	AggregateRating float64
	ReviewCount     int
	BestRating      int
	WorstRating     int
	ScrapedAt       time.Time
	Reviews         []ReviewRecord
}

// Business is the persisted entity. LastScrapedAt is nil until the first
// successful scrape completes.
type Business struct {
	ID              int64
	SourceURL       string
	GroupKey        string
	DisplayName     string
	AggregateRating float64
	ReviewCount     int
	BestRating      int
	WorstRating     int
	LastScrapedAt   *time.Time
	FailureCount    int
	LastError       *string
}

// GroupKey derives the review-grouping slug from a Trustpilot review URL:
// the second path segment, e.g. /review/example.com -> example.com.
func GroupKey(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

var trailingReviews = regexp.MustCompile(`(?i)\s*Reviews?\s*$`)

// CleanBusinessTitle strips site chrome from a scraped business name:
// everything after a "|" delimiter and a trailing "Review"/"Reviews" word.
func CleanBusinessTitle(raw string) string {
	name := strings.TrimSpace(strings.SplitN(raw, "|", 2)[0])
	return strings.TrimSpace(trailingReviews.ReplaceAllString(name, ""))
}
