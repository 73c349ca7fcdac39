package domain

import (
	"regexp"
	"strings"
)

// ReviewRecord is a single review as extracted from the page. PublishedAt
// keeps the source's date string verbatim; it may be empty.
type ReviewRecord struct {
	ExternalID  string
	Title       string
	Body        string
	Rating      int
	Author      string
	PublishedAt string
}

// Review is the persisted entity. Hash is the dedup key derived from
// ExternalID; (BusinessID, Hash) is unique in the store.
type Review struct {
	ID          int64
	BusinessID  int64
	GroupKey    string
	Hash        string
	ExternalID  string
	Title       string
	Body        string
	Rating      int
	Author      string
	PublishedAt string
}

// ReviewHash extracts the dedup key from a full review ID URL: the last
// path segment. Regional domain variants of the same review
// (.../Review/www.example.com/abc123 vs .../Review/uk.example.com/abc123)
// collapse to the same hash.
func ReviewHash(externalID string) string {
	parts := strings.Split(externalID, "/")
	return parts[len(parts)-1]
}

var reviewByPrefix = regexp.MustCompile(`(?i)^Review by\s+`)

// ReviewTitle resolves the display title for a review: the scraped title
// when present, else the author, with any "Review by " prefix stripped.
func ReviewTitle(rec ReviewRecord) string {
	title := rec.Title
	if title == "" {
		title = rec.Author
	}
	return strings.TrimSpace(reviewByPrefix.ReplaceAllString(title, ""))
}
